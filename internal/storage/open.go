package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"petnotify/internal/model"
	logx "petnotify/pkg/logx"
)

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, ErrDisabled
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "memory":
		return NewMemory(cfg), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

func clock(cfg Config) func() time.Time {
	if cfg.Now != nil {
		return cfg.Now
	}
	return time.Now
}

func stamp(now func() time.Time) time.Time {
	return now().UTC().Truncate(time.Millisecond)
}

func normalizeNew(in model.NewNotification) (model.NewNotification, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Target.Type = strings.TrimSpace(in.Target.Type)
	if err := in.Validate(); err != nil {
		return in, errors.Join(ErrInvalid, err)
	}
	if in.ID == "" {
		in.ID = uuid.New().String()
	} else if _, err := uuid.Parse(in.ID); err != nil {
		return in, fmt.Errorf("%w: id %q", ErrInvalid, in.ID)
	}
	in.Metadata = in.Metadata.Clone()
	return in, nil
}
