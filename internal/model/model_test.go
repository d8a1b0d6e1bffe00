package model

import (
	"errors"
	"testing"
)

func TestCategoryForEventType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want Category
	}{
		{"medical", CategoryMedical},
		{"Reproduction", CategoryReproduction},
		{"show", CategoryShow},
		{" care ", CategoryCare},
		{"other", CategorySystem},
		{"", CategorySystem},
		{"reminder", CategorySystem},
	}
	for _, tt := range tests {
		if got := CategoryForEventType(tt.in); got != tt.want {
			t.Errorf("CategoryForEventType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseCategory(t *testing.T) {
	t.Parallel()
	if c, err := ParseCategory("ACTION"); err != nil || c != CategoryAction {
		t.Fatalf("ParseCategory(ACTION) = %q, %v", c, err)
	}
	if _, err := ParseCategory("billing"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestValidateLeadMinutes(t *testing.T) {
	t.Parallel()
	for _, m := range ValidLeadTimes {
		if err := ValidateLeadMinutes(m); err != nil {
			t.Fatalf("lead %d rejected: %v", m, err)
		}
	}
	for _, m := range []int{0, 45, 90, -15} {
		if err := ValidateLeadMinutes(m); !errors.Is(err, ErrInvalidLeadTime) {
			t.Fatalf("lead %d accepted", m)
		}
	}
}

func TestDefaultSettingsAllEnabled(t *testing.T) {
	t.Parallel()
	s := DefaultSettings(7)
	if !s.BrowserEnabled || !s.PushEnabled || !s.EmailEnabled {
		t.Fatalf("channels should default on: %+v", s)
	}
	if !s.NotifyMedical || !s.NotifyCare || !s.NotifyReproduction || !s.NotifySystem {
		t.Fatalf("categories should default on: %+v", s)
	}
	if s.ReminderLeadMinutes != DefaultLeadMinutes {
		t.Fatalf("lead = %d", s.ReminderLeadMinutes)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
}

func TestMetadataHelpers(t *testing.T) {
	t.Parallel()
	var nilMeta Metadata
	if nilMeta.String("x") != "" {
		t.Fatal("nil metadata lookup should be empty")
	}
	m := Metadata{MetaTrigger: "timer_60", "n": 3}
	c := m.Clone()
	c["n"] = 4
	if m["n"] != 3 {
		t.Fatal("Clone must not alias the source map")
	}
	n := Notification{Metadata: m}
	if n.Trigger() != "timer_60" {
		t.Fatalf("Trigger = %q", n.Trigger())
	}
}
