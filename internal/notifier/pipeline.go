package notifier

import (
	"context"
	"errors"
	"fmt"

	"petnotify/internal/delivery"
	"petnotify/internal/model"
	"petnotify/internal/preference"
	"petnotify/internal/resolver"
	"petnotify/internal/storage"
	logx "petnotify/pkg/logx"
)

// Router decides channels for a stored notification.
type Router interface {
	Route(ctx context.Context, n model.Notification) (preference.Decision, error)
}

// Dispatcher pushes to live sessions. It must not block or fail the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, n model.Notification, playSound bool)
}

// Enqueuer hands a notification to out-of-process sinks.
type Enqueuer interface {
	Enqueue(ctx context.Context, n model.Notification, chans model.ChannelSet) error
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	store    storage.Store
	resolver *resolver.Resolver
	router   Router
	rt       Dispatcher
	sinks    Enqueuer // may be nil
	log      logx.Logger
}

func New(store storage.Store, res *resolver.Resolver, router Router, rt Dispatcher, sinks Enqueuer, log logx.Logger) *Pipeline {
	return &Pipeline{store: store, resolver: res, router: router, rt: rt, sinks: sinks, log: log}
}

// Publish stores in and, when a new row was written, delivers it. A
// duplicate trigger returns the existing row with created=false and is not
// delivered again.
func (p *Pipeline) Publish(ctx context.Context, in model.NewNotification) (model.Notification, bool, error) {
	n, created, err := p.store.Create(ctx, in)
	if err != nil {
		return model.Notification{}, false, fmt.Errorf("store notification for user %d: %w", in.RecipientID, err)
	}
	if created {
		p.Deliver(ctx, n)
	}
	return n, created, nil
}

// Deliver routes an already stored notification. Nothing here can fail
// the caller.
func (p *Pipeline) Deliver(ctx context.Context, n model.Notification) {
	d, err := p.router.Route(ctx, n)
	if err != nil {
		p.log.Warn("routing failed; notification kept without delivery",
			logx.String("id", n.ID),
			logx.Int64("user_id", int64(n.RecipientID)),
			logx.Err(err),
		)
		return
	}
	if d.Suppressed() {
		return
	}
	if d.Channels.Has(model.ChannelBrowser) && p.rt != nil {
		p.rt.Dispatch(ctx, n, d.Settings.SoundEnabled)
	}
	if p.sinks == nil {
		return
	}
	if err := p.sinks.Enqueue(ctx, n, d.Channels); err != nil && !errors.Is(err, delivery.ErrDisabled) {
		p.log.Warn("sink enqueue failed", logx.String("id", n.ID), logx.Err(err))
	}
}

// Fanout publishes one notification per recipient. A failure for one
// recipient is logged and does not stop the others; the rows written are
// returned.
func (p *Pipeline) Fanout(ctx context.Context, recipients []model.UserID, build func(model.UserID) model.NewNotification) []model.Notification {
	out := make([]model.Notification, 0, len(recipients))
	for _, u := range recipients {
		n, created, err := p.Publish(ctx, build(u))
		if err != nil {
			p.log.Warn("notification fanout failed for recipient", logx.Int64("user_id", int64(u)), logx.Err(err))
			continue
		}
		if created {
			out = append(out, n)
		}
	}
	return out
}
