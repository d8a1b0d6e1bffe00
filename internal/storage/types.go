package storage

import (
	"context"
	"errors"
	"regexp"
	"time"

	"petnotify/internal/model"
)

var (
	ErrDisabled  = errors.New("storage disabled")
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrInvalid   = errors.New("invalid argument")
)

// Config configures storage.
//
// Driver values:
//   - "memory": process-local maps (tests, development)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// Now overrides the clock used for created_at. Nil means time.Now.
	Now func() time.Time
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// ListFilter narrows a recipient's feed.
type ListFilter struct {
	UnreadOnly bool
	Category   model.Category
	PageSize   int
	PageToken  string
}

func (f ListFilter) pageSize() int {
	switch {
	case f.PageSize <= 0:
		return DefaultPageSize
	case f.PageSize > MaxPageSize:
		return MaxPageSize
	default:
		return f.PageSize
	}
}

// Page is one slice of a feed, newest first.
type Page struct {
	Items         []model.Notification `json:"items"`
	NextPageToken string               `json:"next_page_token,omitempty"`
}

// NotificationStore is the durable notification log.
//
// Every read and mutation except Create is scoped to a recipient; touching a
// row owned by someone else fails with ErrForbidden.
type NotificationStore interface {
	// Create writes a row. If metadata carries a trigger key that already
	// exists for the same recipient and target, the existing row is returned
	// with created=false.
	Create(ctx context.Context, in model.NewNotification) (n model.Notification, created bool, err error)
	Exists(ctx context.Context, recipient model.UserID, target model.TargetRef, meta map[string]string) (bool, error)
	Get(ctx context.Context, id string, recipient model.UserID) (model.Notification, error)
	MarkRead(ctx context.Context, id string, recipient model.UserID) error
	MarkAllRead(ctx context.Context, recipient model.UserID) (int64, error)
	List(ctx context.Context, recipient model.UserID, f ListFilter) (Page, error)
	UnreadCount(ctx context.Context, recipient model.UserID) (int, error)
}

// SettingsStore holds one preference row per user, created lazily.
type SettingsStore interface {
	GetOrCreateSettings(ctx context.Context, user model.UserID) (model.Settings, error)
	UpdateSettings(ctx context.Context, s model.Settings) (model.Settings, error)
	// PatchSettings applies p to the stored row (created with defaults if
	// absent) as one atomic read-modify-write.
	PatchSettings(ctx context.Context, user model.UserID, p model.SettingsPatch) (model.Settings, error)
	// LeadTimes returns the distinct reminder lead times stored across all rows.
	LeadTimes(ctx context.Context) ([]int, error)
}

// DomainStore is the engine's read model of pets, grants and events, fed by
// the surrounding application.
type DomainStore interface {
	UpsertPet(ctx context.Context, p model.Pet) error
	GetPet(ctx context.Context, id int64) (model.Pet, error)
	// ReplaceGrants swaps the full grant list of a pet.
	ReplaceGrants(ctx context.Context, petID int64, grants []model.AccessGrant) error
	// UpsertGrant reports activated=true when the grant is new or was inactive and is now active.
	UpsertGrant(ctx context.Context, g model.AccessGrant) (activated bool, err error)
	ListGrants(ctx context.Context, petID int64) ([]model.AccessGrant, error)

	UpsertEvent(ctx context.Context, e model.PetEvent) error
	GetEvent(ctx context.Context, id int64) (model.PetEvent, error)
	// EventsStartingBetween returns events with StartsAt in [from, to) and the given status.
	EventsStartingBetween(ctx context.Context, from, to time.Time, status model.EventStatus) ([]model.PetEvent, error)
	// EventsDueBetween returns events whose NextDate lies in [from, to).
	EventsDueBetween(ctx context.Context, from, to time.Time) ([]model.PetEvent, error)
}

// Store is the full persistence API.
type Store interface {
	NotificationStore
	SettingsStore
	DomainStore
	Ping(ctx context.Context) error
	Close() error
}

var reMetaKey = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func validMetaKey(k string) bool { return reMetaKey.MatchString(k) }
