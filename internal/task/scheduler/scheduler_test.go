package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"petnotify/internal/task/engine"
	logx "petnotify/pkg/logx"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     SpecKind
		source   string
		duration time.Duration
	}{
		{name: "cron", raw: "*/5 * * * *", kind: SpecCron, source: "cron"},
		{name: "descriptor", raw: "@daily", kind: SpecCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 9 * * *", kind: SpecCron, source: "cron"},
		{name: "duration", raw: "60s", kind: SpecInterval, source: "duration", duration: time.Minute},
		{name: "prefixed interval", raw: "interval:45s", kind: SpecInterval, source: "duration", duration: 45 * time.Second},
		{name: "every prefix", raw: "every:00:05", kind: SpecInterval, source: "hhmm", duration: 5 * time.Minute},
		{name: "hhmm", raw: "01:30", kind: SpecInterval, source: "hhmm", duration: 90 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind || got.Source != tt.source {
				t.Fatalf("got %+v, want kind %v source %s", got, tt.kind, tt.source)
			}
			if tt.kind == SpecInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "-5m", "00:00", "01:75", "cron:61 * * * *", "@sometimes"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("ParseSchedule(%q) accepted", raw)
		}
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := parseHHMM("23:15")
	if err != nil || h != 23 || m != 15 {
		t.Fatalf("parseHHMM = %d:%d, %v", h, m, err)
	}
	for _, bad := range []string{"24:00", "12:60", "noon", "9"} {
		if _, _, err := parseHHMM(bad); err == nil {
			t.Fatalf("parseHHMM(%q) accepted", bad)
		}
	}
}

type recordingRunner struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingRunner) Enqueue(t engine.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, t.Name)
	return nil
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

func noop(context.Context) error { return nil }

func TestIntervalFiresThroughRunner(t *testing.T) {
	t.Parallel()
	r := &recordingRunner{}
	s := New(Config{Enabled: true, Timezone: "UTC"}, r, logx.Nop())
	if err := s.AddInterval("tick", 50*time.Millisecond, time.Second, noop); err != nil {
		t.Fatalf("AddInterval: %v", err)
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for r.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if r.count() == 0 {
		t.Fatal("interval schedule never fired")
	}
	r.mu.Lock()
	name := r.names[0]
	r.mu.Unlock()
	if name != "tick" {
		t.Fatalf("task name = %q", name)
	}
}

func TestDailyScheduleInTimezone(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Timezone: "Europe/Moscow"}, &recordingRunner{}, logx.Nop())
	if err := s.AddDaily("daily", "25:00", time.Second, noop); err == nil {
		t.Fatal("invalid HH:MM accepted")
	}
	if err := s.AddDaily("daily", "09:00", time.Second, noop); err != nil {
		t.Fatalf("AddDaily: %v", err)
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())

	snap := s.Snapshot()
	if snap.Timezone != "Europe/Moscow" || len(snap.Schedules) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	next := snap.Schedules[0].Next.In(s.Location())
	if next.Hour() != 9 || next.Minute() != 0 {
		t.Fatalf("next run = %s", next)
	}
}

func TestUpsertAndRemove(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, &recordingRunner{}, logx.Nop())
	if err := s.AddSchedule("job", "*/5 * * * *", 0, noop); err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}
	if err := s.AddSchedule("job", "10m", 0, noop); err != nil {
		t.Fatalf("AddSchedule replace: %v", err)
	}
	if got := s.Snapshot().Schedules; len(got) != 1 || got[0].Spec != "@every 10m0s" {
		t.Fatalf("schedules = %+v", got)
	}
	if err := s.AddCron("bad", "not cron at all", 0, noop); err == nil {
		t.Fatal("invalid cron accepted")
	}
	if !s.Remove("job") || s.Remove("job") {
		t.Fatal("Remove should succeed once")
	}
}
