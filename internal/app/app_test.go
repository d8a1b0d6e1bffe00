package app

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"petnotify/internal/config"
)

const testYAML = `
http:
  addr: "127.0.0.1:0"
auth:
  jwt_secret: "s3cret"
  internal_token: "tok"
logging:
  level: error
storage:
  driver: memory
reminders:
  enabled: true
  tick: 30s
scheduler:
  enabled: true
  timezone: UTC
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Decode("config.yaml", []byte(testYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return cfg
}

func TestMapRemindersConfig(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	p, err := mapRemindersConfig(cfg)
	if err != nil {
		t.Fatalf("mapRemindersConfig: %v", err)
	}
	want := reminderPlan{Enabled: true, Tick: 30 * time.Second, DailyAt: defaultDailyAt, JobTimeout: defaultJobTimeout}
	if p != want {
		t.Fatalf("plan = %+v, want %+v", p, want)
	}

	cfg.Reminders.Tick = "every:00:02"
	cfg.Reminders.RecurrenceSchedule = "cron:0 9 * * 1-5"
	if p, err = mapRemindersConfig(cfg); err != nil || p.Tick != 2*time.Minute || p.Recurrence != "cron:0 9 * * 1-5" {
		t.Fatalf("plan = %+v, %v", p, err)
	}

	cfg.Scheduler.Enabled = false
	if _, err := mapRemindersConfig(cfg); err == nil {
		t.Fatal("reminders without scheduler should be rejected")
	}
}

func TestMapTaskEngineFollowsScheduler(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	ec, err := mapTaskEngineConfig(cfg)
	if err != nil || !ec.Enabled {
		t.Fatalf("engine config = %+v, %v", ec, err)
	}
	cfg.Scheduler.Enabled = false
	if ec, _ := mapTaskEngineConfig(cfg); ec.Enabled {
		t.Fatal("engine should follow scheduler.enabled")
	}
	cfg.TaskEngine = &config.TaskEngineConfig{DefaultTimeout: "soon"}
	if _, err := mapTaskEngineConfig(cfg); err == nil {
		t.Fatal("bad default_timeout accepted")
	}
}

func TestValidateRuntime(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Config)
		ok     bool
	}{
		{"valid", func(*config.Config) {}, true},
		{"bad timezone", func(c *config.Config) { c.Scheduler.Timezone = "Mars/Base" }, false},
		{"sqlite without path", func(c *config.Config) { c.Storage.Driver = "sqlite" }, false},
		{"bad daily_at", func(c *config.Config) { c.Reminders.DailyAt = "25:00" }, false},
		{"hhmm tick", func(c *config.Config) { c.Reminders.Tick = "00:01" }, true},
		{"cron tick", func(c *config.Config) { c.Reminders.Tick = "*/5 * * * *" }, false},
		{"bad tick", func(c *config.Config) { c.Reminders.Tick = "soon" }, false},
		{"bad recurrence cron", func(c *config.Config) { c.Reminders.RecurrenceSchedule = "cron:0 25 * * *" }, false},
		{"bad heartbeat", func(c *config.Config) { c.Realtime.Heartbeat = "often" }, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig(t)
			tt.mutate(cfg)
			if err := validateRuntime(cfg); (err == nil) != tt.ok {
				t.Fatalf("validateRuntime = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func scheduleNames(a *App) []string {
	var out []string
	for _, s := range a.sched.Snapshot().Schedules {
		out = append(out, s.Name)
	}
	return out
}

// Tests that build an App stay serial: logx.New sets zerolog globals.
func TestBuildRegistersReminderJobs(t *testing.T) {
	a, err := build(nil, testConfig(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Stop(context.Background(), StopUnknown)

	got := strings.Join(scheduleNames(a), ",")
	if got != jobUpcoming+","+jobRecurrence {
		t.Fatalf("schedules = %q", got)
	}
}

func TestApplyConfigTogglesReminders(t *testing.T) {
	prev := testConfig(t)
	a, err := build(nil, prev)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Stop(context.Background(), StopUnknown)

	next := testConfig(t)
	next.Reminders.Enabled = false
	a.applyConfig(context.Background(), prev, next)
	if names := scheduleNames(a); len(names) != 0 {
		t.Fatalf("schedules after disable = %v", names)
	}

	again := testConfig(t)
	again.Reminders.DailyAt = "07:30"
	a.applyConfig(context.Background(), next, again)
	snap := a.sched.Snapshot()
	if len(snap.Schedules) != 2 {
		t.Fatalf("schedules after enable = %+v", snap.Schedules)
	}
	for _, s := range snap.Schedules {
		if s.Name == jobRecurrence && s.Spec != "30 7 * * *" {
			t.Fatalf("recurrence spec = %q", s.Spec)
		}
	}

	weekdays := testConfig(t)
	weekdays.Reminders.DailyAt = "07:30"
	weekdays.Reminders.RecurrenceSchedule = "cron:0 9 * * 1-5"
	a.applyConfig(context.Background(), again, weekdays)
	for _, s := range a.sched.Snapshot().Schedules {
		if s.Name == jobRecurrence && s.Spec != "0 9 * * 1-5" {
			t.Fatalf("recurrence spec with schedule override = %q", s.Spec)
		}
	}
}

func TestAppStartServesHealth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(testYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	a, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get("http://" + a.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	var body map[string]any
	err = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz = %d %v", resp.StatusCode, body)
	}
	for _, k := range []string{"task_engine", "scheduler", "delivery", "realtime", "supervisor"} {
		if _, ok := body[k]; !ok {
			t.Fatalf("healthz missing %q: %v", k, body)
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, StopSignal); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-a.Done():
	default:
		t.Fatal("Done should be closed after Stop")
	}
}
