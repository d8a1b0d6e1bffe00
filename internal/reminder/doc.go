// Package reminder synthesizes time-driven notifications.
//
// Two scans run on timers. ScanUpcoming reminds every owner and grant
// holder of a planned event at their personal lead time and tags the row
// with trigger "timer_<minutes>". ScanRecurrence asks once per calendar day
// to reschedule events whose next occurrence is due, tagged
// "repeat_<event_id>_<YYYY-MM-DD>".
//
// Trigger keys are deterministic, so a scan may be repeated or overlap with
// another run without producing duplicates.
package reminder
