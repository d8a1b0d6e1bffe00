package notifier

import (
	"fmt"
	"strings"

	"petnotify/internal/model"
)

// EventLink is the client route of a pet event.
func EventLink(petID, eventID int64) string {
	return fmt.Sprintf("/pets/%d/events/%d", petID, eventID)
}

func authorLabel(u *model.UserID) string {
	if u == nil {
		return "System"
	}
	return fmt.Sprintf("user #%d", *u)
}

// TypeLabel names an event by its type, falling back to the slug.
func TypeLabel(e model.PetEvent) string {
	if s := strings.TrimSpace(e.TypeName); s != "" {
		return s
	}
	if s := strings.TrimSpace(e.TypeSlug); s != "" {
		return s
	}
	return "event"
}

// EventCreatedNotification renders the notice for a new pet event.
func EventCreatedNotification(to model.UserID, e model.PetEvent, petName string) model.NewNotification {
	return model.NewNotification{
		RecipientID: to,
		Category:    model.CategoryForEventType(e.TypeCategory),
		Title:       "New event: " + e.Title,
		Message:     fmt.Sprintf("Event %q was added for %s. Author: %s.", TypeLabel(e), petName, authorLabel(e.CreatedBy)),
		Target:      model.TargetRef{Type: model.TargetPetEvent, ID: e.ID},
		Metadata: model.Metadata{
			"pet_id":      e.PetID,
			"event_id":    e.ID,
			"event_type":  e.TypeSlug,
			model.MetaLink: EventLink(e.PetID, e.ID),
		},
	}
}

// GrantNotification renders the notice for a newly active access grant.
func GrantNotification(g model.AccessGrant, petName string) model.NewNotification {
	level := string(g.Level)
	if level == "" {
		level = string(model.AccessRead)
	}
	return model.NewNotification{
		RecipientID: g.UserID,
		Category:    model.CategorySystem,
		Title:       "Access granted",
		Message:     fmt.Sprintf("You now have %s access to %s.", level, petName),
		Target:      model.TargetRef{Type: model.TargetPet, ID: g.PetID},
		Metadata: model.Metadata{
			"pet_id":       g.PetID,
			"access_level": level,
			model.MetaLink: fmt.Sprintf("/pets/%d", g.PetID),
		},
	}
}

// VerificationNotification renders an approve/reject decision.
func VerificationNotification(v model.Verification) (model.NewNotification, error) {
	var title, msg string
	switch strings.ToLower(strings.TrimSpace(v.Status)) {
	case "approved":
		title, msg = "Verification approved", "Your verification request was approved."
	case "rejected":
		title, msg = "Verification rejected", "Your verification request was rejected."
	default:
		return model.NewNotification{}, fmt.Errorf("verification %d: status %q is not a decision", v.ID, v.Status)
	}
	return model.NewNotification{
		RecipientID: v.UserID,
		Category:    model.CategorySystem,
		Title:       title,
		Message:     msg,
		Target:      model.TargetRef{Type: model.TargetVerification, ID: v.ID},
		Metadata:    model.Metadata{"status": strings.ToLower(v.Status)},
	}, nil
}
