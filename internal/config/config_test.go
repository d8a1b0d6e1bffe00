package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "petnotify/pkg/logx"
)

const sampleYAML = `
http:
  addr: ":9090"
auth:
  jwt_secret: "s3cret"
  internal_token: "tok"
logging:
  level: debug
  console: true
storage:
  driver: memory
reminders:
  enabled: true
  tick: 30s
  daily_at: "08:15"
scheduler:
  enabled: true
  timezone: UTC
`

func TestDecodeYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("config.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" || cfg.Storage.Driver != "memory" || cfg.Reminders.Tick != "30s" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if d := cfg.EffectiveDelivery(); !d.Enabled || d.Workers != 2 {
		t.Fatalf("omitted delivery should use defaults, got %+v", d)
	}
}

func TestDecodeRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		file string
		data string
	}{
		{"unknown yaml key", "c.yml", "http:\n  address: x\n"},
		{"unknown json key", "c.json", `{"bogus": 1}`},
		{"trailing json", "c.json", `{} {}`},
		{"bad yaml", "c.yaml", "http: [\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode(tt.file, []byte(tt.data)); err == nil {
				t.Fatalf("expected error for %q", tt.data)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("config.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	err = ApplyEnv(cfg, map[string]string{
		"PETNOTIFY_HTTP_ADDR":      "127.0.0.1:7000",
		"PETNOTIFY_JWT_SECRET":     "from-env",
		"PETNOTIFY_STORAGE_DRIVER": "sqlite",
		"PETNOTIFY_STORAGE_PATH":   "/tmp/x.db",
		"PETNOTIFY_LOG_LEVEL":      "  ",
		"UNRELATED":                "1",
	})
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.HTTP.Addr != "127.0.0.1:7000" || cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != "/tmp/x.db" {
		t.Fatalf("storage overrides not applied: %+v", cfg.Storage)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("blank override must not clear the file value, got %q", cfg.Logging.Level)
	}
	if cfg.Auth.InternalToken != "tok" {
		t.Fatalf("unset override changed value: %q", cfg.Auth.InternalToken)
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Storage:   StorageConfig{Driver: "sqlite"},
		Logging:   LoggingConfig{Level: "loud"},
		Reminders: RemindersConfig{JobTimeout: "soon", DailyAt: "25:00"},
		Scheduler: SchedulerConfig{Timezone: "Mars/Olympus"},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"auth.jwt_secret", "auth.internal_token", "logging.level",
		"storage.path", "reminders.job_timeout", "reminders.daily_at", "scheduler.timezone",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", time.Minute, false},
		{"0s", time.Minute, false},
		{"15s", 15 * time.Second, false},
		{"-1s", 0, true},
		{"nope", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDurationOrDefault("x", tt.raw, time.Minute)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseDurationOrDefault(%q) err = %v", tt.raw, err)
		}
		if !tt.wantErr && got != tt.want {
			t.Fatalf("ParseDurationOrDefault(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestDecodeYAMLReportsKeyPath(t *testing.T) {
	t.Parallel()
	_, err := Decode("config.yml", []byte("http:\n  addr: \":80\"\n  8080: true\n"))
	if err == nil || !strings.Contains(err.Error(), "config.yml: http.8080: key 8080 must be a name") {
		t.Fatalf("Decode err = %v", err)
	}
	_, err = Decode("config.yaml", []byte("http: [unclosed"))
	if err == nil || !strings.HasPrefix(err.Error(), "config.yaml: ") {
		t.Fatalf("Decode err = %v", err)
	}
}

func TestDurationFieldsFollowSections(t *testing.T) {
	t.Parallel()
	cfg := &Config{}
	base := len(durationFields(cfg))
	cfg.Delivery = &DeliveryConfig{SendTimeout: "later"}
	cfg.TaskEngine = &TaskEngineConfig{}
	if n := len(durationFields(cfg)); n != base+5 {
		t.Fatalf("fields with optional sections = %d, want %d", n, base+5)
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), `delivery.send_timeout: invalid duration "later"`) {
		t.Fatalf("Validate err = %v", err)
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := ParseHHMM("09:05")
	if err != nil || h != 9 || m != 5 {
		t.Fatalf("ParseHHMM = %d:%d, %v", h, m, err)
	}
	for _, bad := range []string{"9", "24:00", "12:60", "aa:bb"} {
		if _, _, err := ParseHHMM(bad); err == nil {
			t.Fatalf("ParseHHMM(%q) accepted", bad)
		}
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg, _ := Decode("c.yaml", []byte(sampleYAML))
	newCfg, _ := Decode("c.yaml", []byte(sampleYAML))
	if changed, _ := SummarizeConfigChange(oldCfg, newCfg); len(changed) != 0 {
		t.Fatalf("identical configs reported changes: %v", changed)
	}

	newCfg.Auth.JWTSecret = "rotated"
	newCfg.Reminders.Tick = "45s"
	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if strings.Join(changed, ",") != "auth,reminders" {
		t.Fatalf("changed = %v", changed)
	}
	var buf bytes.Buffer
	logx.NewWriter(&buf, "debug").Info("config reloaded", attrs...)
	if strings.Contains(buf.String(), "rotated") {
		t.Fatalf("secret leaked into log line: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "auth.jwt_secret_set") {
		t.Fatalf("expected set flag in log line: %s", buf.String())
	}
	if r := RestartRequired(changed); len(r) != 1 || r[0] != "auth" {
		t.Fatalf("RestartRequired = %v", r)
	}
}

func TestManagerLoadAndWatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	m.SetEnviron(map[string]string{})
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)
	go func() { _ = m.Watch(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(200 * time.Millisecond)
	updated := strings.Replace(sampleYAML, "tick: 30s", "tick: 90s", 1)
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-sub:
		if got.Reminders.Tick != "90s" {
			t.Fatalf("published tick = %q", got.Reminders.Tick)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
