package model

import (
	"errors"
	"time"
)

// Pet is the notification engine's view of a pet record.
type Pet struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	OwnerID *UserID `json:"owner_id,omitempty"`
}

type AccessLevel string

const (
	AccessRead  AccessLevel = "read"
	AccessWrite AccessLevel = "write"
)

// AccessGrant is a revocable (pet, user) authorization distinct from ownership.
type AccessGrant struct {
	PetID  int64       `json:"pet_id"`
	UserID UserID      `json:"user_id"`
	Level  AccessLevel `json:"level"`
	Active bool        `json:"active"`
}

type EventStatus string

const (
	EventPlanned   EventStatus = "planned"
	EventCompleted EventStatus = "completed"
	EventMissed    EventStatus = "missed"
)

// PetEvent is a scheduled or recorded event in a pet's life.
type PetEvent struct {
	ID           int64       `json:"id"`
	PetID        int64       `json:"pet_id"`
	Title        string      `json:"title"`
	TypeName     string      `json:"type_name"`
	TypeSlug     string      `json:"type_slug"`
	TypeCategory string      `json:"type_category"`
	Status       EventStatus `json:"status"`
	StartsAt     time.Time   `json:"starts_at"`
	NextDate     *time.Time  `json:"next_date,omitempty"`
	CreatedBy    *UserID     `json:"created_by,omitempty"`
}

func (e PetEvent) Validate() error {
	if e.ID <= 0 || e.PetID <= 0 {
		return errors.New("event id and pet id are required")
	}
	switch e.Status {
	case EventPlanned, EventCompleted, EventMissed:
	default:
		return errors.New("invalid event status")
	}
	if e.StartsAt.IsZero() {
		return errors.New("starts_at is required")
	}
	return nil
}

// Verification is a user's request to be verified (for example as a veterinarian).
type Verification struct {
	ID     int64  `json:"id"`
	UserID UserID `json:"user_id"`
	Status string `json:"status"` // approved | rejected
}
