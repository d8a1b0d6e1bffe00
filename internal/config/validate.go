package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	logx "petnotify/pkg/logx"
)

// Validate checks a parsed config. It is used at startup and by Watch before
// a reloaded config is committed.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		add(errors.New("auth.jwt_secret is required"))
	}
	if strings.TrimSpace(cfg.Auth.InternalToken) == "" {
		add(errors.New("auth.internal_token is required"))
	}
	if lvl := strings.TrimSpace(cfg.Logging.Level); lvl != "" && !logx.ValidLevel(lvl) {
		add(fmt.Errorf("logging.level: unknown level %q", lvl))
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		add(errors.New("logging.file.path is required when file logging is enabled"))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "memory":
	case "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add(errors.New("storage.path is required for sqlite"))
		}
	case "":
		add(errors.New("storage.driver is required"))
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}

	for _, f := range durationFields(cfg) {
		_, err := ParseDurationField(f.path, f.raw)
		add(err)
	}
	if cfg.Delivery != nil {
		if cfg.Delivery.Workers < 0 || cfg.Delivery.QueueSize < 0 || cfg.Delivery.RatePerSec < 0 {
			add(errors.New("delivery: workers, queue_size and rate_per_sec must be >= 0"))
		}
	}
	if at := strings.TrimSpace(cfg.Reminders.DailyAt); at != "" {
		if _, _, err := ParseHHMM(at); err != nil {
			add(fmt.Errorf("reminders.daily_at: %w", err))
		}
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("scheduler.timezone: %w", err))
		}
	}
	if cfg.Pprof.MutexProfileFraction < 0 || cfg.Pprof.BlockProfileRate < 0 {
		add(errors.New("pprof: profile rates must be >= 0"))
	}
	return errors.Join(errs...)
}

// ParseHHMM parses "HH:MM" (24h).
func ParseHHMM(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	return h, m, nil
}
