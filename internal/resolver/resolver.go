// Package resolver computes who is entitled to hear about a pet-scoped
// domain object, and resolves weak target references back to their objects.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"petnotify/internal/model"
	"petnotify/internal/storage"
	logx "petnotify/pkg/logx"
)

// Resolver reads ownership and grants from the domain view.
type Resolver struct {
	store storage.DomainStore
	log   logx.Logger
}

func New(store storage.DomainStore, log logx.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

// ForPet returns the owner of petID plus every active grant holder, each once,
// sorted by id. The author is removed unless includeAuthor is set. A pet that
// is unknown or has nobody attached resolves to an empty set.
func (r *Resolver) ForPet(ctx context.Context, petID int64, author *model.UserID, includeAuthor bool) ([]model.UserID, error) {
	pet, err := r.store.GetPet(ctx, petID)
	if errors.Is(err, storage.ErrNotFound) {
		r.log.Debug("pet not in view; no recipients", logx.Int64("pet_id", petID))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pet %d: %w", petID, err)
	}
	grants, err := r.store.ListGrants(ctx, petID)
	if err != nil {
		return nil, fmt.Errorf("load grants of pet %d: %w", petID, err)
	}
	return Recipients(pet, grants, author, includeAuthor), nil
}

// Recipients is the pure form of ForPet.
func Recipients(pet model.Pet, grants []model.AccessGrant, author *model.UserID, includeAuthor bool) []model.UserID {
	set := make(map[model.UserID]struct{}, len(grants)+1)
	if pet.OwnerID != nil && *pet.OwnerID > 0 {
		set[*pet.OwnerID] = struct{}{}
	}
	for _, g := range grants {
		if g.Active && g.UserID > 0 && (g.PetID == 0 || g.PetID == pet.ID) {
			set[g.UserID] = struct{}{}
		}
	}
	if !includeAuthor && author != nil {
		delete(set, *author)
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]model.UserID, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
