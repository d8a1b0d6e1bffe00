package preference

import (
	"context"
	"reflect"
	"testing"

	"petnotify/internal/model"
	"petnotify/internal/storage"
	logx "petnotify/pkg/logx"
)

func TestChannels(t *testing.T) {
	t.Parallel()
	all := model.DefaultSettings(1)

	noMedical := all
	noMedical.NotifyMedical = false

	browserOnly := all
	browserOnly.PushEnabled = false
	browserOnly.EmailEnabled = false

	nothing := all
	nothing.BrowserEnabled, nothing.PushEnabled, nothing.EmailEnabled = false, false, false
	nothing.NotifySystem = false

	tests := []struct {
		name string
		cat  model.Category
		s    model.Settings
		want model.ChannelSet
	}{
		{"defaults", model.CategoryMedical, all, model.ChannelSet{model.ChannelBrowser, model.ChannelPush, model.ChannelEmail}},
		{"medical suppressed", model.CategoryMedical, noMedical, nil},
		{"other category unaffected", model.CategoryCare, noMedical, model.ChannelSet{model.ChannelBrowser, model.ChannelPush, model.ChannelEmail}},
		{"browser only care", model.CategoryCare, browserOnly, model.ChannelSet{model.ChannelBrowser}},
		{"reminder ignores system flag", model.CategoryReminder, nothing, model.ChannelSet{}},
		{"system suppressed", model.CategorySystem, nothing, nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Channels(tt.cat, tt.s)
			if len(got) != len(tt.want) || (len(got) > 0 && !reflect.DeepEqual(got, tt.want)) {
				t.Fatalf("Channels = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAlwaysOnCategories(t *testing.T) {
	t.Parallel()
	s := model.DefaultSettings(1)
	s.NotifyMedical, s.NotifyCare, s.NotifyReproduction, s.NotifySystem = false, false, false, false
	for _, c := range []model.Category{model.CategoryReminder, model.CategoryAction} {
		if got := Channels(c, s); len(got) != 3 {
			t.Fatalf("%s channels = %v", c, got)
		}
	}
	for _, c := range []model.Category{model.CategoryMedical, model.CategoryCare, model.CategoryReproduction, model.CategorySystem} {
		if got := Channels(c, s); len(got) != 0 {
			t.Fatalf("%s should be suppressed, got %v", c, got)
		}
	}
}

func TestRouteCreatesSettingsLazily(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := storage.NewMemory(storage.Config{})
	r := New(st, logx.Nop())

	d, err := r.Route(ctx, model.Notification{RecipientID: 4, Category: model.CategoryCare})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if d.Suppressed() || len(d.Channels) != 3 {
		t.Fatalf("defaults should fire every channel: %+v", d)
	}
	leads, _ := st.LeadTimes(ctx)
	if len(leads) != 1 || leads[0] != model.DefaultLeadMinutes {
		t.Fatalf("settings row not materialized: leads=%v", leads)
	}
}

func TestRouteBrowserOnlyCare(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := storage.NewMemory(storage.Config{})
	s := model.DefaultSettings(1)
	s.PushEnabled = false
	s.EmailEnabled = false
	if _, err := st.UpdateSettings(ctx, s); err != nil {
		t.Fatal(err)
	}
	d, err := New(st, logx.Nop()).Route(ctx, model.Notification{RecipientID: 1, Category: model.CategoryCare})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(d.Channels, model.ChannelSet{model.ChannelBrowser}) || !d.Settings.SoundEnabled {
		t.Fatalf("decision = %+v", d)
	}
}
