package realtime

import (
	"context"
	"time"

	"petnotify/internal/model"
	logx "petnotify/pkg/logx"
)

const defaultPublishTimeout = 2 * time.Second

// Dispatcher pushes rendered notifications to the recipient's topic.
// It never returns transport errors: the stored row is the recovery path.
type Dispatcher struct {
	pub     Publisher
	timeout time.Duration
	loc     *time.Location
	log     logx.Logger
}

func NewDispatcher(pub Publisher, timeout time.Duration, loc *time.Location, log logx.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Dispatcher{pub: pub, timeout: timeout, loc: loc, log: log}
}

// Dispatch renders n and publishes it on user:<recipient>.
func (d *Dispatcher) Dispatch(ctx context.Context, n model.Notification, playSound bool) {
	if d == nil || d.pub == nil {
		return
	}
	data, fellBack, err := Encode(n, playSound, d.loc)
	if err != nil {
		d.log.Warn("realtime payload encode failed", logx.String("id", n.ID), logx.Err(err))
		return
	}
	if fellBack {
		d.log.Warn("realtime payload fell back to minimal fields", logx.String("id", n.ID))
	}

	// The write path may already be cancelled; publishing still gets its own budget.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	topic := Topic(n.RecipientID)
	if err := d.pub.Publish(pctx, topic, Message{Event: EventNotification, Data: data}); err != nil {
		d.log.Warn("realtime publish failed",
			logx.String("topic", topic),
			logx.String("id", n.ID),
			logx.Err(err),
		)
	}
}
