package delivery

import (
	"context"
	"errors"
	"time"

	"petnotify/internal/model"
)

var (
	ErrDisabled  = errors.New("delivery disabled")
	ErrQueueFull = errors.New("delivery queue full")
	ErrStopped   = errors.New("delivery stopped")
	ErrNoSink    = errors.New("no sink for channel")
)

// Config controls the sink pipeline.
type Config struct {
	Enabled       bool
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
}

// Message is one outbound notification for one channel.
type Message struct {
	Channel      model.Channel
	Notification model.Notification
}

// Sink delivers messages over one channel (push, email). Implementations
// live outside the engine; Send must honor ctx.
type Sink interface {
	Name() model.Channel
	Send(ctx context.Context, m Message) error
}

// HistoryItem records one finished send.
type HistoryItem struct {
	At      time.Time     `json:"at"`
	Channel model.Channel `json:"channel"`
	ID      string        `json:"id"`
	UserID  model.UserID  `json:"user_id"`
	Error   string        `json:"error,omitempty"`
}

type Stats struct {
	Queued  uint64 `json:"queued"`
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}
