package pprof

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "petnotify/pkg/logx"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"disabled ignores addr", Config{Addr: "nonsense"}, true},
		{"default loopback", Config{Enabled: true}, true},
		{"localhost", Config{Enabled: true, Addr: "localhost:7070"}, true},
		{"public without token", Config{Enabled: true, Addr: ":6060"}, false},
		{"public with token", Config{Enabled: true, Addr: "0.0.0.0:6060", Token: "t"}, true},
		{"bad addr", Config{Enabled: true, Addr: "6060"}, false},
	}
	for _, tt := range tests {
		if err := tt.cfg.Validate(); (err == nil) != tt.ok {
			t.Errorf("%s: Validate = %v, want ok=%v", tt.name, err, tt.ok)
		}
	}
}

func TestHandlerToken(t *testing.T) {
	t.Parallel()
	h := Handler("sekret")
	tests := []struct {
		name   string
		target string
		auth   string
		want   int
	}{
		{"missing", "/debug/pprof/cmdline", "", http.StatusUnauthorized},
		{"wrong", "/debug/pprof/cmdline?token=nope", "", http.StatusUnauthorized},
		{"query", "/debug/pprof/cmdline?token=sekret", "", http.StatusOK},
		{"bearer", "/debug/pprof/cmdline", "Bearer sekret", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.target, nil)
		if tt.auth != "" {
			req.Header.Set("Authorization", tt.auth)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	addr := s.Addr()
	if addr == "" {
		t.Fatal("no bound address")
	}
	resp, err := http.Get("http://" + addr + "/debug/pprof/cmdline")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Reconfigure(ctx, Config{}); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if s.Addr() != "" || s.Enabled() {
		t.Fatal("service should be stopped after disable")
	}
}
