// Package realtime fans rendered notifications out to live client sessions.
//
// Each user has one topic, "user:<id>". Any number of sessions may subscribe;
// a user with none simply misses the push and reads the feed later.
package realtime
