package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type UserID int64

// Category classifies a notification for preference filtering and UI treatment.
type Category string

const (
	CategorySystem       Category = "system"
	CategoryReminder     Category = "reminder"
	CategoryMedical      Category = "medical"
	CategoryReproduction Category = "reproduction"
	CategoryShow         Category = "show"
	CategoryCare         Category = "care"
	CategoryAction       Category = "action"
)

var categories = []Category{
	CategorySystem, CategoryReminder, CategoryMedical, CategoryReproduction,
	CategoryShow, CategoryCare, CategoryAction,
}

var ErrUnknownCategory = errors.New("unknown category")

// ParseCategory accepts only the closed category set.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range categories {
		if c == k {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// CategoryForEventType maps a pet event type category onto a notification category.
func CategoryForEventType(eventCategory string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(eventCategory))); c {
	case CategoryMedical, CategoryReproduction, CategoryShow, CategoryCare:
		return c
	default:
		return CategorySystem
	}
}

// TargetRef is a weak (type, id) reference to the object a notification is about.
// The referent may disappear; lookups then report not found.
type TargetRef struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

const (
	TargetPet          = "pet"
	TargetPetEvent     = "pet_event"
	TargetVerification = "verification"
)

func (r TargetRef) IsZero() bool { return r.Type == "" && r.ID == 0 }

func (r TargetRef) String() string {
	if r.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}

// Metadata keys with engine meaning.
const (
	MetaTrigger = "trigger"
	MetaLink    = "link"
	MetaActions = "actions"
)

type Metadata map[string]any

// String returns the string value under key, or "".
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Notification is owned by exactly one recipient. Only IsRead ever changes.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID UserID    `json:"recipient_id"`
	Category    Category  `json:"category"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Target      TargetRef `json:"target"`
	Metadata    Metadata  `json:"metadata"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`

	// Seq orders notifications for paging; it is store-assigned.
	Seq int64 `json:"-"`
}

// Trigger returns the scheduler trigger key, if any.
func (n Notification) Trigger() string { return n.Metadata.String(MetaTrigger) }

// NewNotification is the input to Store.Create.
type NewNotification struct {
	// ID is optional; the store assigns a UUID when empty.
	ID          string
	RecipientID UserID
	Category    Category
	Title       string
	Message     string
	Target      TargetRef
	Metadata    Metadata
}

func (n NewNotification) Validate() error {
	if n.RecipientID <= 0 {
		return errors.New("recipient is required")
	}
	if _, err := ParseCategory(string(n.Category)); err != nil {
		return err
	}
	if strings.TrimSpace(n.Title) == "" {
		return errors.New("title is required")
	}
	return nil
}

// Action is a one-click follow-up rendered by clients.
type Action struct {
	Label    string `json:"label"`
	Style    string `json:"style"`
	Method   string `json:"method"`
	Endpoint string `json:"endpoint"`
}
