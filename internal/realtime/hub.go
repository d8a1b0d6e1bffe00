package realtime

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"petnotify/internal/model"
)

// Message is one realtime frame for a topic.
type Message struct {
	Topic string
	Event string
	Data  []byte
	Time  time.Time
}

// Publisher sends a frame to every live subscriber of a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, m Message) error
}

// Topic returns the per-user fan-out address.
func Topic(user model.UserID) string {
	return "user:" + strconv.FormatInt(int64(user), 10)
}

// Hub is an in-process topic fan-out.
//
// Contract:
//   - Publish never blocks on a subscriber.
//   - Subscribers get buffered channels; a slow subscriber drops frames.
//
// Hub owns no goroutines.
type Hub struct {
	buffer int

	mu     sync.RWMutex
	topics map[string]map[uint64]chan Message
	seq    atomic.Uint64

	published atomic.Uint64
	dropped   atomic.Uint64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{buffer: buffer, topics: map[string]map[uint64]chan Message{}}
}

// Publish delivers m to the current subscribers of topic. Having no
// subscribers is not an error.
func (h *Hub) Publish(ctx context.Context, topic string, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.Time.IsZero() {
		m.Time = time.Now()
	}
	m.Topic = topic

	// Sends never block, so they run under the read lock; unsubscribe closes
	// under the write lock and cannot race a send.
	h.mu.RLock()
	for _, ch := range h.topics[topic] {
		select {
		case ch <- m:
			h.published.Add(1)
		default:
			h.dropped.Add(1)
		}
	}
	h.mu.RUnlock()
	return nil
}

// Subscribe attaches to topic. The returned func detaches and closes the channel.
func (h *Hub) Subscribe(topic string) (<-chan Message, func()) {
	ch := make(chan Message, h.buffer)
	id := h.seq.Add(1)

	h.mu.Lock()
	subs := h.topics[topic]
	if subs == nil {
		subs = map[uint64]chan Message{}
		h.topics[topic] = subs
	}
	subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if subs := h.topics[topic]; subs != nil {
				delete(subs, id)
				if len(subs) == 0 {
					delete(h.topics, topic)
				}
			}
			close(ch)
			h.mu.Unlock()
		})
	}
}

type HubStats struct {
	Topics      int    `json:"topics"`
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
}

func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	st := HubStats{Topics: len(h.topics)}
	for _, subs := range h.topics {
		st.Subscribers += len(subs)
	}
	h.mu.RUnlock()
	st.Published = h.published.Load()
	st.Dropped = h.dropped.Load()
	return st
}
