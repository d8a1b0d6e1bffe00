package app

import (
	"context"
	"strings"
	"time"

	"petnotify/internal/config"
	"petnotify/internal/reminder"
	"petnotify/internal/task/scheduler"
	logx "petnotify/pkg/logx"
)

// reloadLoop fans committed configs out to the live components.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					break drain
				}
			}
			if next == nil {
				continue
			}
			a.applyConfig(ctx, last, next)
			last = next
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if restart := config.RestartRequired(sections); len(restart) > 0 {
		a.log.Warn("config sections changed that need a restart",
			logx.String("sections", strings.Join(restart, ",")))
	}

	a.logs.Apply(mapLogging(next.Logging))

	if dcfg, err := mapDeliveryConfig(next); err != nil {
		a.log.Warn("invalid delivery config; keeping previous", logx.Err(err))
	} else {
		a.applyDelivery(ctx, dcfg.Enabled, func() { a.delivery.Apply(dcfg) })
	}

	engCfg, err := mapTaskEngineConfig(next)
	if err != nil {
		a.log.Warn("invalid task_engine config; keeping previous", logx.Err(err))
	} else {
		prevSched := a.sched.Enabled()
		if prevSched && !next.Scheduler.Enabled {
			a.log.Info("scheduler disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.sched.Stop(stopCtx)
			cancel()
		}
		a.engine.Apply(ctx, engCfg)
		a.sched.Apply(scheduler.Config{Enabled: next.Scheduler.Enabled, Timezone: next.Scheduler.Timezone})
		if !prevSched && next.Scheduler.Enabled {
			a.log.Info("scheduler enabled via config")
			a.sched.Start(ctx)
		}
	}

	if plan, err := mapRemindersConfig(next); err != nil {
		a.log.Warn("invalid reminders config; keeping previous", logx.Err(err))
	} else {
		loc, _ := loadLocation(next.Scheduler.Timezone)
		a.reminders.Apply(reminder.Config{Tick: plan.Tick, Location: loc})
		a.mu.Lock()
		changed := plan != a.plan
		a.plan = plan
		a.mu.Unlock()
		if changed {
			if err := a.registerReminders(plan); err != nil {
				a.log.Warn("reminder schedules not updated", logx.Err(err))
			}
		}
	}

	if pcfg, err := mapPprofConfig(next); err != nil {
		a.log.Warn("invalid pprof config; keeping previous", logx.Err(err))
	} else if err := a.pprof.Reconfigure(ctx, pcfg); err != nil {
		a.log.Warn("pprof reconfigure failed", logx.Err(err))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// applyDelivery applies a delivery change and starts or stops the sink
// workers when the enabled flag flips.
func (a *App) applyDelivery(ctx context.Context, enabled bool, apply func()) {
	was := a.delivery.Enabled()
	if was && !enabled {
		a.log.Info("delivery disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.delivery.Stop(stopCtx)
		cancel()
	}
	apply()
	if !was && enabled {
		a.log.Info("delivery enabled via config")
		a.delivery.Start(ctx)
	}
}
