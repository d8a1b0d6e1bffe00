package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"petnotify/internal/model"
	"petnotify/internal/storage"
	logx "petnotify/pkg/logx"
)

// EventSaved notifies about a newly created pet event. Updates
// (created=false) are ignored. The author never notifies themselves.
// The event path is not deduplicated: saving twice notifies twice.
func (p *Pipeline) EventSaved(ctx context.Context, e model.PetEvent, created bool) ([]model.Notification, error) {
	if !created {
		return nil, nil
	}
	recipients, err := p.resolver.ForPet(ctx, e.PetID, e.CreatedBy, false)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		p.log.Debug("event has no recipients", logx.Int64("event_id", e.ID), logx.Int64("pet_id", e.PetID))
		return nil, nil
	}
	petName := p.petName(ctx, e.PetID)

	out := p.Fanout(ctx, recipients, func(u model.UserID) model.NewNotification {
		return EventCreatedNotification(u, e, petName)
	})
	p.log.Info("event notifications written",
		logx.Int64("event_id", e.ID),
		logx.Int("recipients", len(recipients)),
		logx.Int("written", len(out)),
	)
	return out, nil
}

// GrantSaved notifies a user who just gained active access to a pet.
func (p *Pipeline) GrantSaved(ctx context.Context, g model.AccessGrant, activated bool, author *model.UserID) (*model.Notification, error) {
	if !activated || !g.Active {
		return nil, nil
	}
	if author != nil && *author == g.UserID {
		return nil, nil
	}
	in := GrantNotification(g, p.petName(ctx, g.PetID))
	n, created, err := p.Publish(ctx, in)
	if err != nil || !created {
		return nil, err
	}
	return &n, nil
}

// VerificationDecided notifies the requesting user of an approve/reject decision.
func (p *Pipeline) VerificationDecided(ctx context.Context, v model.Verification) (*model.Notification, error) {
	in, err := VerificationNotification(v)
	if err != nil {
		return nil, err
	}
	n, _, err := p.Publish(ctx, in)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (p *Pipeline) petName(ctx context.Context, petID int64) string {
	return PetName(ctx, p.store, petID, p.log)
}

// PetName is the display name of a pet, or "pet #<id>" when the record is
// missing or unnamed. Lookup failures other than not-found are logged.
func PetName(ctx context.Context, pets storage.DomainStore, petID int64, log logx.Logger) string {
	pet, err := pets.GetPet(ctx, petID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn("pet lookup failed", logx.Int64("pet_id", petID), logx.Err(err))
		}
		return fmt.Sprintf("pet #%d", petID)
	}
	if strings.TrimSpace(pet.Name) == "" {
		return fmt.Sprintf("pet #%d", petID)
	}
	return pet.Name
}
