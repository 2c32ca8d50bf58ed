package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"deshhindi/internal/editor"
	"deshhindi/internal/session/model"
	"deshhindi/internal/session/repository"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	WelcomeID   = "welcome"
	WelcomeText = "<div>स्वागत है! यहाँ टाइप करना शुरू करें...</div>"

	// MaxImageBytes caps uploads that get inlined as data URLs.
	MaxImageBytes = 5 << 20

	todayLabel = "Today"
	monthLabel = "January 2006"
)

// Refiner corrects text; on failure it returns its input.
type Refiner interface {
	Refine(ctx context.Context, text string) string
}

// Notifier pushes server-side changes to live editors of a session and
// exposes markup they have not saved yet.
type Notifier interface {
	PublishUpdate(ownerID, sessionID, content string)
	RemoveSession(ownerID, sessionID string)
	Content(ownerID, sessionID string) (string, bool)
}

type SessionService struct {
	Repo    *repository.SessionRepository
	Refiner Refiner
	Hub     Notifier
}

func NewSessionService(repo *repository.SessionRepository, refiner Refiner, hub Notifier) *SessionService {
	return &SessionService{Repo: repo, Refiner: refiner, Hub: hub}
}

// List returns the owner's sessions, most recently created first. An owner without sessions
// gets the welcome session.
func (s *SessionService) List(userID string) ([]model.Session, error) {
	sessions, err := s.Repo.List(userID)
	if err != nil {
		return nil, err
	}
	if len(sessions) > 0 {
		return sessions, nil
	}
	if err := s.Repo.CreateIfMissing(userID, WelcomeID, WelcomeText); err != nil {
		return nil, err
	}
	return s.Repo.List(userID)
}

func (s *SessionService) Grouped(userID string, now time.Time) ([]model.Group, error) {
	sessions, err := s.List(userID)
	if err != nil {
		return nil, err
	}
	return GroupSessions(sessions, now), nil
}

// GroupSessions labels sessions "Today" when they were touched on now's
// calendar day and by month otherwise. Groups keep the order in which their
// first session appears.
func GroupSessions(sessions []model.Session, now time.Time) []model.Group {
	groups := []model.Group{}
	index := map[string]int{}
	for _, sess := range sessions {
		label := dateLabel(sess.UpdatedAt().In(now.Location()), now)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, model.Group{Label: label})
		}
		groups[i].Sessions = append(groups[i].Sessions, sess)
	}
	return groups
}

func dateLabel(t, now time.Time) string {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return todayLabel
	}
	return t.Format(monthLabel)
}

func (s *SessionService) Create(userID string) (model.Session, error) {
	id := uuid.NewString()
	updatedAt, err := s.Repo.Create(userID, id, editor.EmptyDocument)
	if err != nil {
		return model.Session{}, err
	}
	return model.NewSession(id, editor.EmptyDocument, updatedAt), nil
}

// Get returns a stored session. While the session is open in an editor the
// live markup wins over the stored one.
func (s *SessionService) Get(userID, id string) (model.Session, error) {
	sess, err := s.Repo.Get(userID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Session{}, err
	}
	if live, ok := s.Hub.Content(userID, id); ok {
		sess = model.NewSession(id, live, sess.UpdatedAt())
	}
	return sess, nil
}

func (s *SessionService) UpdateText(userID, id, text string) (model.Session, error) {
	if err := s.write(userID, id, text); err != nil {
		return model.Session{}, err
	}
	return s.Get(userID, id)
}

func (s *SessionService) write(userID, id, text string) error {
	n, err := s.Repo.UpdateContent(userID, id, text)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Hub.PublishUpdate(userID, id, text)
	return nil
}

// Delete removes a session. The last remaining session is never removed; its
// text is reset to an empty document instead.
func (s *SessionService) Delete(userID, id string) (model.DeleteResponse, error) {
	deleted, err := s.Repo.DeleteUnlessLast(userID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DeleteResponse{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.DeleteResponse{}, err
	}

	if !deleted {
		if err := s.write(userID, id, editor.EmptyDocument); err != nil {
			return model.DeleteResponse{}, err
		}
		return model.DeleteResponse{DeletedID: id, ActiveID: id, Reset: true}, nil
	}
	s.Hub.RemoveSession(userID, id)

	resp := model.DeleteResponse{DeletedID: id}
	remaining, err := s.Repo.List(userID)
	if err != nil {
		return resp, err
	}
	if len(remaining) > 0 {
		resp.ActiveID = remaining[0].ID
	}
	return resp, nil
}

// Refine sends the session's plain text through the refiner and stores the
// answer as plain text markup. Blank sessions are returned unchanged.
func (s *SessionService) Refine(ctx context.Context, userID, id string) (model.Session, error) {
	sess, err := s.Get(userID, id)
	if err != nil {
		return model.Session{}, err
	}
	plain := editor.PlainText(sess.Text)
	if strings.TrimSpace(plain) == "" {
		return sess, nil
	}

	refined := s.Refiner.Refine(ctx, plain)
	if err := s.write(userID, id, editor.FromPlainText(refined)); err != nil {
		return model.Session{}, err
	}
	return s.Get(userID, id)
}

// Export returns the text a copy to the clipboard carries.
func (s *SessionService) Export(userID, id string) (model.ExportResponse, error) {
	sess, err := s.Get(userID, id)
	if err != nil {
		return model.ExportResponse{}, err
	}
	return model.ExportResponse{ID: id, Text: editor.PlainText(sess.Text)}, nil
}

// InsertImage appends an uploaded image inlined as a data URL.
func (s *SessionService) InsertImage(userID, id string, data []byte) (model.Session, error) {
	if len(data) == 0 || len(data) > MaxImageBytes {
		return model.Session{}, fmt.Errorf("%w: image must be between 1 byte and %d bytes", ErrInvalidInput, MaxImageBytes)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return model.Session{}, fmt.Errorf("%w: %s is not an image", ErrInvalidInput, mime)
	}

	sess, err := s.Get(userID, id)
	if err != nil {
		return model.Session{}, err
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	if err := s.write(userID, id, sess.Text+editor.ImageTag(dataURL)); err != nil {
		return model.Session{}, err
	}
	return s.Get(userID, id)
}

func (s *SessionService) Preferences(userID string) (model.Preferences, error) {
	p, err := s.Repo.GetPreferences(userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultPreferences(), nil
	}
	return p, err
}

func (s *SessionService) SavePreferences(userID string, p model.Preferences) (model.Preferences, error) {
	if p.FontSize == 0 {
		p.FontSize = model.DefaultFontSize
	}
	if p.FontSize < model.MinFontSize || p.FontSize > model.MaxFontSize {
		return model.Preferences{}, fmt.Errorf("%w: font size must be within %d..%d", ErrInvalidInput, model.MinFontSize, model.MaxFontSize)
	}
	mode, err := editor.ParseMode(string(p.Mode))
	if err != nil {
		return model.Preferences{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	p.Mode = mode
	if err := s.Repo.SavePreferences(userID, p); err != nil {
		return model.Preferences{}, err
	}
	return p, nil
}
