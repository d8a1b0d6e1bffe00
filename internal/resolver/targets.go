package resolver

import (
	"context"
	"errors"
	"strings"
	"sync"

	"petnotify/internal/model"
	"petnotify/internal/storage"
)

// ErrTargetNotFound covers both an unknown target type and a referent that
// no longer exists.
var ErrTargetNotFound = errors.New("target not found")

// LookupFunc loads the object behind one target type.
type LookupFunc func(ctx context.Context, id int64) (any, error)

// Targets maps target types to lookups.
type Targets struct {
	mu sync.RWMutex
	m  map[string]LookupFunc
}

func NewTargets() *Targets {
	return &Targets{m: map[string]LookupFunc{}}
}

// DomainTargets registers lookups for the types held in the domain view.
func DomainTargets(store storage.DomainStore) *Targets {
	t := NewTargets()
	t.Register(model.TargetPet, func(ctx context.Context, id int64) (any, error) {
		return store.GetPet(ctx, id)
	})
	t.Register(model.TargetPetEvent, func(ctx context.Context, id int64) (any, error) {
		return store.GetEvent(ctx, id)
	})
	return t
}

func (t *Targets) Register(typ string, fn LookupFunc) {
	typ = strings.TrimSpace(typ)
	if typ == "" || fn == nil {
		return
	}
	t.mu.Lock()
	t.m[typ] = fn
	t.mu.Unlock()
}

// Lookup resolves ref. Missing referents are reported as ErrTargetNotFound.
func (t *Targets) Lookup(ctx context.Context, ref model.TargetRef) (any, error) {
	if ref.IsZero() {
		return nil, ErrTargetNotFound
	}
	t.mu.RLock()
	fn := t.m[ref.Type]
	t.mu.RUnlock()
	if fn == nil {
		return nil, ErrTargetNotFound
	}
	v, err := fn(ctx, ref.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTargetNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}
