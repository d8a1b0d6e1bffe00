// Package scheduler registers recurring triggers (cron, interval, daily) and
// hands each firing to the task engine. It never runs jobs itself.
package scheduler
