// Package httpapi is the HTTP surface of the notification engine.
//
// Public routes authenticate a bearer JWT whose user_id claim is the caller;
// every feed and settings call is scoped to that user. Internal routes take
// domain writes from the surrounding application and are guarded by a shared
// X-Internal-Token header. Realtime frames stream as Server-Sent Events.
package httpapi
