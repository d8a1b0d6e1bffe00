package model

import (
	"errors"
	"fmt"
)

// Channel is a delivery surface.
type Channel string

const (
	ChannelBrowser Channel = "browser"
	ChannelPush    Channel = "push"
	ChannelEmail   Channel = "email"
)

// ChannelSet is an ordered set of channels (browser, push, email).
type ChannelSet []Channel

func (s ChannelSet) Has(c Channel) bool {
	for _, x := range s {
		if x == c {
			return true
		}
	}
	return false
}

func (s ChannelSet) Empty() bool { return len(s) == 0 }

const DefaultLeadMinutes = 60

// ValidLeadTimes is the fixed set of reminder offsets, in minutes.
var ValidLeadTimes = []int{15, 30, 60, 120, 1440}

var ErrInvalidLeadTime = errors.New("invalid reminder lead time")

func ValidateLeadMinutes(m int) error {
	for _, v := range ValidLeadTimes {
		if v == m {
			return nil
		}
	}
	return fmt.Errorf("%w: %d (allowed %v)", ErrInvalidLeadTime, m, ValidLeadTimes)
}

// Settings is the per-user delivery preference record.
type Settings struct {
	UserID UserID `json:"user_id"`

	BrowserEnabled bool `json:"browser_enabled"`
	PushEnabled    bool `json:"push_enabled"`
	EmailEnabled   bool `json:"email_enabled"`
	SoundEnabled   bool `json:"sound_enabled"`

	NotifyMedical      bool `json:"notify_medical"`
	NotifyCare         bool `json:"notify_care"`
	NotifyReproduction bool `json:"notify_reproduction"`
	NotifySystem       bool `json:"notify_system"`

	ReminderLeadMinutes int `json:"reminder_time_minutes"`
}

// DefaultSettings is what a user without a stored row behaves like.
func DefaultSettings(user UserID) Settings {
	return Settings{
		UserID:              user,
		BrowserEnabled:      true,
		PushEnabled:         true,
		EmailEnabled:        true,
		SoundEnabled:        true,
		NotifyMedical:       true,
		NotifyCare:          true,
		NotifyReproduction:  true,
		NotifySystem:        true,
		ReminderLeadMinutes: DefaultLeadMinutes,
	}
}

func (s Settings) Validate() error {
	if s.UserID <= 0 {
		return errors.New("user is required")
	}
	return ValidateLeadMinutes(s.ReminderLeadMinutes)
}

// SettingsPatch is a partial settings update; nil fields keep their value.
type SettingsPatch struct {
	BrowserEnabled      *bool `json:"browser_enabled"`
	PushEnabled         *bool `json:"push_enabled"`
	EmailEnabled        *bool `json:"email_enabled"`
	SoundEnabled        *bool `json:"sound_enabled"`
	NotifyMedical       *bool `json:"notify_medical"`
	NotifyCare          *bool `json:"notify_care"`
	NotifyReproduction  *bool `json:"notify_reproduction"`
	NotifySystem        *bool `json:"notify_system"`
	ReminderLeadMinutes *int  `json:"reminder_time_minutes"`
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// Apply copies the present fields onto s.
func (p SettingsPatch) Apply(s *Settings) {
	setBool(&s.BrowserEnabled, p.BrowserEnabled)
	setBool(&s.PushEnabled, p.PushEnabled)
	setBool(&s.EmailEnabled, p.EmailEnabled)
	setBool(&s.SoundEnabled, p.SoundEnabled)
	setBool(&s.NotifyMedical, p.NotifyMedical)
	setBool(&s.NotifyCare, p.NotifyCare)
	setBool(&s.NotifyReproduction, p.NotifyReproduction)
	setBool(&s.NotifySystem, p.NotifySystem)
	if p.ReminderLeadMinutes != nil {
		s.ReminderLeadMinutes = *p.ReminderLeadMinutes
	}
}
