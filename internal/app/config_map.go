package app

import (
	"fmt"
	"strings"
	"time"

	"petnotify/internal/config"
	"petnotify/internal/delivery"
	"petnotify/internal/httpapi"
	"petnotify/internal/observability/pprof"
	"petnotify/internal/storage"
	"petnotify/internal/task/engine"
	"petnotify/internal/task/scheduler"
	logx "petnotify/pkg/logx"
)

const (
	defaultTick       = 60 * time.Second
	defaultDailyAt    = "09:00"
	defaultJobTimeout = 50 * time.Second
)

func mapLogging(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		JSON:    c.JSON,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
		ErrorBurstPerSec: c.ErrorBurstPerSec,
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	switch driver {
	case "memory":
		return storage.Config{Driver: driver}, nil
	case "sqlite", "sqlite3":
		path := strings.TrimSpace(sc.Path)
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func loadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

func mapHTTPConfig(cfg *config.Config, loc *time.Location) (httpapi.Config, error) {
	read, err := config.ParseDurationField("http.read_timeout", cfg.HTTP.ReadTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	write, err := config.ParseDurationField("http.write_timeout", cfg.HTTP.WriteTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	shutdown, err := config.ParseDurationOrDefault("http.shutdown_timeout", cfg.HTTP.ShutdownTimeout, 10*time.Second)
	if err != nil {
		return httpapi.Config{}, err
	}
	heartbeat, err := config.ParseDurationOrDefault("realtime.heartbeat", cfg.Realtime.Heartbeat, 25*time.Second)
	if err != nil {
		return httpapi.Config{}, err
	}
	addr := strings.TrimSpace(cfg.HTTP.Addr)
	if addr == "" {
		addr = ":8080"
	}
	return httpapi.Config{
		Addr:            addr,
		ReadTimeout:     read,
		WriteTimeout:    write,
		ShutdownTimeout: shutdown,
		Heartbeat:       heartbeat,
		JWTSecret:       cfg.Auth.JWTSecret,
		InternalToken:   cfg.Auth.InternalToken,
		Location:        loc,
	}, nil
}

func mapDeliveryConfig(cfg *config.Config) (delivery.Config, error) {
	dc := cfg.EffectiveDelivery()
	base, err := config.ParseDurationOrDefault("delivery.retry_base", dc.RetryBase, 500*time.Millisecond)
	if err != nil {
		return delivery.Config{}, err
	}
	maxDelay, err := config.ParseDurationOrDefault("delivery.retry_max_delay", dc.RetryMaxDelay, 10*time.Second)
	if err != nil {
		return delivery.Config{}, err
	}
	send, err := config.ParseDurationOrDefault("delivery.send_timeout", dc.SendTimeout, 10*time.Second)
	if err != nil {
		return delivery.Config{}, err
	}
	return delivery.Config{
		Enabled:       dc.Enabled,
		Workers:       dc.Workers,
		QueueSize:     dc.QueueSize,
		RatePerSec:    dc.RatePerSec,
		RetryMax:      dc.RetryMax,
		RetryBase:     base,
		RetryMaxDelay: maxDelay,
		SendTimeout:   send,
	}, nil
}

// mapTaskEngineConfig follows the scheduler switch: the engine only runs
// scheduled jobs, so it is enabled exactly when the scheduler is.
func mapTaskEngineConfig(cfg *config.Config) (engine.Config, error) {
	var te config.TaskEngineConfig
	if cfg.TaskEngine != nil {
		te = *cfg.TaskEngine
	}
	if te.Workers < 0 || te.QueueSize < 0 || te.HistorySize < 0 || te.RetryMax < 0 {
		return engine.Config{}, fmt.Errorf("task_engine: sizes and retry_max must be >= 0")
	}
	defTimeout, err := config.ParseDurationField("task_engine.default_timeout", te.DefaultTimeout)
	if err != nil {
		return engine.Config{}, err
	}
	maxDelay, err := config.ParseDurationField("task_engine.max_queue_delay", te.MaxQueueDelay)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Enabled:        cfg.Scheduler.Enabled,
		Workers:        te.Workers,
		QueueSize:      te.QueueSize,
		DefaultTimeout: defTimeout,
		MaxQueueDelay:  maxDelay,
		HistorySize:    te.HistorySize,
		RetryMax:       te.RetryMax,
	}, nil
}

// reminderPlan is the resolved reminders section. Recurrence, when set,
// overrides DailyAt.
type reminderPlan struct {
	Enabled    bool
	Tick       time.Duration
	DailyAt    string
	Recurrence string
	JobTimeout time.Duration
}

func mapRemindersConfig(cfg *config.Config) (reminderPlan, error) {
	rc := cfg.Reminders
	tick := defaultTick
	if raw := strings.TrimSpace(rc.Tick); raw != "" {
		ps, err := scheduler.ParseSchedule(raw)
		if err != nil {
			return reminderPlan{}, fmt.Errorf("reminders.tick: %w", err)
		}
		// The tick is also the width of the upcoming window.
		if ps.Kind != scheduler.SpecInterval {
			return reminderPlan{}, fmt.Errorf("reminders.tick: %q is not an interval", raw)
		}
		tick = ps.Every
	}
	recurrence := strings.TrimSpace(rc.RecurrenceSchedule)
	if recurrence != "" {
		if _, err := scheduler.ParseSchedule(recurrence); err != nil {
			return reminderPlan{}, fmt.Errorf("reminders.recurrence_schedule: %w", err)
		}
	}
	timeout, err := config.ParseDurationOrDefault("reminders.job_timeout", rc.JobTimeout, defaultJobTimeout)
	if err != nil {
		return reminderPlan{}, err
	}
	at := strings.TrimSpace(rc.DailyAt)
	if at == "" {
		at = defaultDailyAt
	}
	if _, _, err := config.ParseHHMM(at); err != nil {
		return reminderPlan{}, fmt.Errorf("reminders.daily_at: %w", err)
	}
	if rc.Enabled && !cfg.Scheduler.Enabled {
		return reminderPlan{}, fmt.Errorf("reminders.enabled requires scheduler.enabled")
	}
	return reminderPlan{Enabled: rc.Enabled, Tick: tick, DailyAt: at, Recurrence: recurrence, JobTimeout: timeout}, nil
}

func mapPprofConfig(cfg *config.Config) (pprof.Config, error) {
	pc := cfg.Pprof
	out := pprof.Config{
		Enabled:              pc.Enabled,
		Addr:                 strings.TrimSpace(pc.Addr),
		Token:                strings.TrimSpace(pc.Token),
		MutexProfileFraction: pc.MutexProfileFraction,
		BlockProfileRate:     pc.BlockProfileRate,
	}
	return out, out.Validate()
}

// validateRuntime runs every mapper once so a reload that cannot be applied
// is rejected before it is committed.
func validateRuntime(cfg *config.Config) error {
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	loc, err := loadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return err
	}
	if _, err := mapHTTPConfig(cfg, loc); err != nil {
		return err
	}
	if _, err := mapDeliveryConfig(cfg); err != nil {
		return err
	}
	if _, err := mapTaskEngineConfig(cfg); err != nil {
		return err
	}
	if _, err := mapPprofConfig(cfg); err != nil {
		return err
	}
	_, err = mapRemindersConfig(cfg)
	return err
}
