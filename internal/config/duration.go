package config

import (
	"fmt"
	"strings"
	"time"
)

// durationField is one duration-valued setting addressed by its config path.
type durationField struct {
	path string
	raw  string
}

// durationFields lists the duration settings of cfg. Optional sections
// contribute only when present. reminders.tick is a schedule, not a plain
// duration, and is checked where it is mapped.
func durationFields(cfg *Config) []durationField {
	fs := []durationField{
		{"http.read_timeout", cfg.HTTP.ReadTimeout},
		{"http.write_timeout", cfg.HTTP.WriteTimeout},
		{"http.shutdown_timeout", cfg.HTTP.ShutdownTimeout},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
		{"realtime.publish_timeout", cfg.Realtime.PublishTimeout},
		{"realtime.heartbeat", cfg.Realtime.Heartbeat},
		{"reminders.job_timeout", cfg.Reminders.JobTimeout},
	}
	if d := cfg.Delivery; d != nil {
		fs = append(fs,
			durationField{"delivery.retry_base", d.RetryBase},
			durationField{"delivery.retry_max_delay", d.RetryMaxDelay},
			durationField{"delivery.send_timeout", d.SendTimeout},
		)
	}
	if te := cfg.TaskEngine; te != nil {
		fs = append(fs,
			durationField{"task_engine.default_timeout", te.DefaultTimeout},
			durationField{"task_engine.max_queue_delay", te.MaxQueueDelay},
		)
	}
	return fs
}

// ParseDurationField parses the setting at path. Empty means unset and is 0.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q (want e.g. \"30s\" or \"5m\")", path, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration %q must be >= 0", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for unset or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
