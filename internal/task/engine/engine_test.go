package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	logx "petnotify/pkg/logx"
)

func startEngine(t *testing.T, cfg Config) *Service {
	t.Helper()
	cfg.Enabled = true
	s := New(cfg, logx.Nop())
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestEnqueueRuns(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1})
	var ran atomic.Int32
	if err := s.Enqueue(Task{Name: "job", Run: func(context.Context) error { ran.Add(1); return nil }}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, func() bool { return s.Snapshot().Completed == 1 })
	if ran.Load() != 1 {
		t.Fatalf("ran = %d", ran.Load())
	}
}

func TestOverlapSkip(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 2})
	release := make(chan struct{})
	started := make(chan struct{})
	slow := Task{Name: "scan", Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}
	if err := s.Enqueue(slow); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	<-started
	if err := s.Enqueue(Task{Name: "scan", Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrOverlapSkip) {
		t.Fatalf("second Enqueue = %v, want ErrOverlapSkip", err)
	}
	if !s.Running("scan") {
		t.Fatal("Running should report the in-flight task")
	}
	close(release)
	waitFor(t, func() bool { return !s.Running("scan") })
	if got := s.Snapshot().Skipped; got != 1 {
		t.Fatalf("skipped = %d", got)
	}
}

func TestTimeoutAndNoRetry(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1, RetryMax: 3})
	var calls atomic.Int32
	err := s.Enqueue(Task{
		Name:    "permanent",
		Timeout: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			calls.Add(1)
			<-ctx.Done()
			return NoRetry(ctx.Err())
		},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, func() bool { return s.Snapshot().Failed == 1 })
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	h := s.Snapshot().History
	if len(h) != 1 || h[0].Error != context.DeadlineExceeded.Error() {
		t.Fatalf("history = %+v", h)
	}
}

func TestRetryThenSucceed(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1})
	var calls atomic.Int32
	err := s.Enqueue(Task{
		Name: "flaky",
		Opt:  TaskOptions{RetryMax: 2, RetryBase: time.Millisecond, RetryMaxDelay: 5 * time.Millisecond},
		Run: func(context.Context) error {
			if calls.Add(1) < 3 {
				return errors.New("boom")
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, func() bool { return s.Snapshot().Completed == 1 })
	if h := s.Snapshot().History; h[0].Attempts != 3 {
		t.Fatalf("attempts = %d", h[0].Attempts)
	}
}

func TestPanicBecomesFailure(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1})
	if err := s.Enqueue(Task{Name: "bad", Opt: TaskOptions{RetryMax: -1}, Run: func(context.Context) error { panic("nope") }}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, func() bool { return s.Snapshot().Failed == 1 })
	if err := s.Enqueue(Task{Name: "good", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("engine unusable after panic: %v", err)
	}
	waitFor(t, func() bool { return s.Snapshot().Completed == 1 })
}

func TestDisabledAndStopped(t *testing.T) {
	t.Parallel()
	noop := Task{Name: "x", Run: func(context.Context) error { return nil }}
	if err := New(Config{}, logx.Nop()).Enqueue(noop); !errors.Is(err, ErrDisabled) {
		t.Fatalf("disabled Enqueue = %v", err)
	}
	s := New(Config{Enabled: true}, logx.Nop())
	if err := s.Enqueue(noop); !errors.Is(err, ErrStopped) {
		t.Fatalf("not started Enqueue = %v", err)
	}
	if err := s.Enqueue(Task{Name: "x"}); err == nil {
		t.Fatal("nil Run accepted")
	}
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()
	opt := TaskOptions{}.withDefaults(Config{})
	opt.RetryJitter = 0.2
	rng := rand.New(rand.NewSource(1))
	for retry := 1; retry <= 8; retry++ {
		d := backoffDelay(opt, retry, errors.New("x"), rng)
		if d < 0 || d > opt.RetryMaxDelay {
			t.Fatalf("retry %d: delay %s out of bounds", retry, d)
		}
	}
	hint := backoffDelay(opt, 1, RetryAfter(errors.New("x"), time.Hour), rng)
	if hint != opt.RetryMaxDelay {
		t.Fatalf("hint should clamp to max: %s", hint)
	}
}
