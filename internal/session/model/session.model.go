package model

import (
	"time"

	"deshhindi/internal/editor"
)

// Session is one typing document. Timestamp is in Unix milliseconds, the
// format the browser stores.
type Session struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"`
}

// NewSession fills the derived fields from a stored row.
func NewSession(id, text string, updatedAt time.Time) Session {
	return Session{
		ID:        id,
		Text:      text,
		Title:     editor.Snippet(text),
		Timestamp: updatedAt.UnixMilli(),
	}
}

func (s Session) UpdatedAt() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// Group is one sidebar heading: "Today" or a month label.
type Group struct {
	Label    string    `json:"label"`
	Sessions []Session `json:"sessions"`
}

type UpdateTextRequest struct {
	Text string `json:"text"`
}

type DeleteResponse struct {
	DeletedID string `json:"deleted_id"`
	ActiveID  string `json:"active_id"`
	Reset     bool   `json:"reset"`
}

type ExportResponse struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

const (
	MinFontSize     = 8
	MaxFontSize     = 72
	DefaultFontSize = 24
)

type Preferences struct {
	FontSize int         `json:"font_size"`
	Mode     editor.Mode `json:"mode"`
}

func DefaultPreferences() Preferences {
	return Preferences{FontSize: DefaultFontSize, Mode: editor.ModeHindi}
}
