// Package notifier turns domain writes into stored notifications and pushes
// them out.
//
// The event path is explicit composition:
//
//	resolve recipients -> store (always) -> route by preferences -> dispatch realtime + enqueue sinks
//
// Every stored row is permanent. Routing, realtime and sink failures are
// logged per recipient and never undo or block the write.
package notifier
