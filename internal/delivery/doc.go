// Package delivery hands notifications to out-of-process channels (push,
// email) after they are stored. Sends are best-effort: a lost send never
// affects the stored row.
package delivery
