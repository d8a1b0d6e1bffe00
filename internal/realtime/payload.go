package realtime

import (
	"encoding/json"
	"time"

	"petnotify/internal/model"
)

// EventNotification names realtime frames carrying a notification.
const EventNotification = "notification"

const displayLayout = "02.01.2006 15:04"

// View is the client representation of a notification, shared by the feed
// and realtime frames.
type View struct {
	ID                 string           `json:"id"`
	Category           model.Category   `json:"category"`
	Title              string           `json:"title"`
	Message            string           `json:"message"`
	IsRead             bool             `json:"is_read"`
	CreatedAt          time.Time        `json:"created_at"`
	CreatedAtFormatted string           `json:"created_at_formatted"`
	LinkedObject       *model.TargetRef `json:"linked_object"`
	Metadata           model.Metadata   `json:"metadata"`
	Link               string           `json:"link,omitempty"`
	PlaySound          bool             `json:"play_sound"`
}

// NewView renders n. loc only affects created_at_formatted; nil means UTC.
func NewView(n model.Notification, playSound bool, loc *time.Location) View {
	if loc == nil {
		loc = time.UTC
	}
	v := View{
		ID:                 n.ID,
		Category:           n.Category,
		Title:              n.Title,
		Message:            n.Message,
		IsRead:             n.IsRead,
		CreatedAt:          n.CreatedAt,
		CreatedAtFormatted: n.CreatedAt.In(loc).Format(displayLayout),
		Metadata:           n.Metadata,
		Link:               n.Metadata.String(model.MetaLink),
		PlaySound:          playSound,
	}
	if v.Metadata == nil {
		v.Metadata = model.Metadata{}
	}
	if !n.Target.IsZero() {
		ref := n.Target
		v.LinkedObject = &ref
	}
	return v
}

// minimalView is sent when the full view cannot be encoded.
type minimalView struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Category model.Category `json:"category"`
}

// Encode renders the frame payload for n. If the full view fails to encode
// (for example, metadata holding a non-JSON value) it falls back to the
// fixed minimal fields. fellBack reports that case.
func Encode(n model.Notification, playSound bool, loc *time.Location) (data []byte, fellBack bool, err error) {
	data, err = json.Marshal(NewView(n, playSound, loc))
	if err == nil {
		return data, false, nil
	}
	data, err = json.Marshal(minimalView{ID: n.ID, Title: n.Title, Message: n.Message, Category: n.Category})
	return data, true, err
}
