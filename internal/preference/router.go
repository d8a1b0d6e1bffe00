// Package preference decides which delivery channels fire for a
// notification, based on the recipient's settings.
package preference

import (
	"context"
	"fmt"

	"petnotify/internal/model"
	"petnotify/internal/storage"
	logx "petnotify/pkg/logx"
)

// categoryFlags gates categories behind a settings flag. Categories that are
// absent (reminder, action) are always delivered.
var categoryFlags = map[model.Category]func(model.Settings) bool{
	model.CategoryMedical:      func(s model.Settings) bool { return s.NotifyMedical },
	model.CategoryCare:         func(s model.Settings) bool { return s.NotifyCare },
	model.CategoryReproduction: func(s model.Settings) bool { return s.NotifyReproduction },
	model.CategorySystem:       func(s model.Settings) bool { return s.NotifySystem },
}

// Channels returns the active channels for a category under s, in
// browser, push, email order. A suppressed category yields no channels.
func Channels(c model.Category, s model.Settings) model.ChannelSet {
	if flag, ok := categoryFlags[c]; ok && !flag(s) {
		return nil
	}
	out := make(model.ChannelSet, 0, 3)
	if s.BrowserEnabled {
		out = append(out, model.ChannelBrowser)
	}
	if s.PushEnabled {
		out = append(out, model.ChannelPush)
	}
	if s.EmailEnabled {
		out = append(out, model.ChannelEmail)
	}
	return out
}

// Decision is the routing outcome for one notification.
type Decision struct {
	Channels model.ChannelSet
	Settings model.Settings
}

func (d Decision) Suppressed() bool { return d.Channels.Empty() }

// Router loads settings (creating defaults on first use) and applies Channels.
type Router struct {
	store storage.SettingsStore
	log   logx.Logger
}

func New(store storage.SettingsStore, log logx.Logger) *Router {
	return &Router{store: store, log: log}
}

func (r *Router) Route(ctx context.Context, n model.Notification) (Decision, error) {
	s, err := r.store.GetOrCreateSettings(ctx, n.RecipientID)
	if err != nil {
		return Decision{}, fmt.Errorf("load settings of user %d: %w", n.RecipientID, err)
	}
	d := Decision{Channels: Channels(n.Category, s), Settings: s}
	if d.Suppressed() {
		r.log.Debug("notification suppressed by preferences",
			logx.String("id", n.ID),
			logx.Int64("user_id", int64(n.RecipientID)),
			logx.String("category", string(n.Category)),
		)
	}
	return d, nil
}
