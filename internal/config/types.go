package config

// Config is the root document loaded from config.yaml (or .json).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	HTTP     HTTPConfig     `json:"http"`
	Auth     AuthConfig     `json:"auth"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Realtime RealtimeConfig `json:"realtime"`

	// Delivery may be omitted; it then defaults to enabled with log sinks.
	Delivery *DeliveryConfig `json:"delivery,omitempty"`

	Reminders RemindersConfig `json:"reminders"`

	// Scheduler controls triggers (cron/interval/daily); TaskEngine executes them.
	Scheduler  SchedulerConfig   `json:"scheduler"`
	TaskEngine *TaskEngineConfig `json:"task_engine,omitempty"`

	Pprof PprofConfig `json:"pprof"`
}

type HTTPConfig struct {
	Addr            string `json:"addr"` // default ":8080"
	ReadTimeout     string `json:"read_timeout,omitempty"`
	WriteTimeout    string `json:"write_timeout,omitempty"` // keep 0 for long-lived SSE streams
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`
}

// AuthConfig holds secrets. Never log these values.
type AuthConfig struct {
	JWTSecret     string `json:"jwt_secret"`
	InternalToken string `json:"internal_token"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	JSON    bool        `json:"json,omitempty"`
	File    LoggingFile `json:"file"`

	// ErrorBurstPerSec bounds identical error lines per second. 0 disables sampling.
	ErrorBurstPerSec int `json:"error_burst_per_sec,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the persistence driver.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/petnotify.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

type RealtimeConfig struct {
	// Buffer is the per-subscriber queue length. Default 32.
	Buffer int `json:"buffer,omitempty"`
	// PublishTimeout bounds one publish call. Default "2s".
	PublishTimeout string `json:"publish_timeout,omitempty"`
	// Heartbeat is the SSE keep-alive period. Default "25s".
	Heartbeat string `json:"heartbeat,omitempty"`
}

// DeliveryConfig controls the push/email sink pipeline.
type DeliveryConfig struct {
	Enabled       bool   `json:"enabled"`
	Workers       int    `json:"workers"`
	QueueSize     int    `json:"queue_size"`
	RatePerSec    int    `json:"rate_per_sec"`
	RetryMax      int    `json:"retry_max"`
	RetryBase     string `json:"retry_base"`
	RetryMaxDelay string `json:"retry_max_delay"`
	SendTimeout   string `json:"send_timeout,omitempty"`
}

// RemindersConfig controls the two periodic scans.
//
// Defaults: tick "60s", daily_at "09:00", job_timeout "50s".
//
// Tick is an interval schedule ("90s", "every:2m", "00:05"). When set,
// RecurrenceSchedule replaces daily_at and takes any schedule form, e.g.
// "cron:0 9 * * 1-5" or "12h".
type RemindersConfig struct {
	Enabled            bool   `json:"enabled"`
	Tick               string `json:"tick,omitempty"`
	DailyAt            string `json:"daily_at,omitempty"`
	RecurrenceSchedule string `json:"recurrence_schedule,omitempty"`
	JobTimeout         string `json:"job_timeout,omitempty"`
}

type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone,omitempty"`
}

// TaskEngineConfig controls the task execution engine.
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 64
//   - default_timeout: "0s" (disabled)
//   - max_queue_delay: "0s" (disabled)
//   - history_size: 100
//   - retry_max: 0
type TaskEngineConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	MaxQueueDelay  string `json:"max_queue_delay,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
	RetryMax       int    `json:"retry_max,omitempty"`
}

// PprofConfig controls the optional profiling listener.
//
// A non-loopback addr requires a token.
type PprofConfig struct {
	Enabled              bool   `json:"enabled"`
	Addr                 string `json:"addr,omitempty"` // default "127.0.0.1:6060"
	Token                string `json:"token,omitempty"`
	MutexProfileFraction int    `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int    `json:"block_profile_rate,omitempty"`
}

// DefaultDelivery is used when the delivery section is omitted.
func DefaultDelivery() DeliveryConfig {
	return DeliveryConfig{
		Enabled:       true,
		Workers:       2,
		QueueSize:     512,
		RatePerSec:    10,
		RetryMax:      3,
		RetryBase:     "500ms",
		RetryMaxDelay: "10s",
		SendTimeout:   "10s",
	}
}

// EffectiveDelivery returns the delivery section or its defaults.
func (c *Config) EffectiveDelivery() DeliveryConfig {
	if c == nil || c.Delivery == nil {
		return DefaultDelivery()
	}
	return *c.Delivery
}
