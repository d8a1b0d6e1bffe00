// Package storage persists notifications, per-user notification settings and
// the read model of pets, access grants and events the engine routes on.
//
// Two drivers are available:
//   - memory: process-local maps, used by tests and throwaway deployments
//   - sqlite: a single database file (modernc.org/sqlite through sqlx)
//
// Notifications carrying a "trigger" metadata key are unique per
// (recipient, target, trigger); a second Create returns the existing row.
package storage
