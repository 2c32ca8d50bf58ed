package repository

import (
	"database/sql"
	"time"

	"deshhindi/internal/editor"
	"deshhindi/internal/session/model"
	"deshhindi/pkg/logger"
)

type SessionRepository struct {
	DB *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) Create(ownerID, id, content string) (time.Time, error) {
	var updatedAt time.Time
	err := r.DB.QueryRow(`INSERT INTO typing_sessions (owner_id, id, content, updated_at) VALUES ($1, $2, $3, NOW())
		RETURNING updated_at`, ownerID, id, content).Scan(&updatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to create session %s for %s: %v", id, ownerID, err)
	}
	return updatedAt, err
}

// CreateIfMissing inserts a session unless the owner already has one with the same id.
func (r *SessionRepository) CreateIfMissing(ownerID, id, content string) error {
	_, err := r.DB.Exec(`INSERT INTO typing_sessions (owner_id, id, content, updated_at) VALUES ($1, $2, $3, NOW())
		ON CONFLICT (owner_id, id) DO NOTHING`, ownerID, id, content)
	if err != nil {
		logger.Sugar.Errorf("Failed to seed session %s for %s: %v", id, ownerID, err)
	}
	return err
}

func (r *SessionRepository) List(ownerID string) ([]model.Session, error) {
	rows, err := r.DB.Query(`SELECT id, content, updated_at FROM typing_sessions WHERE owner_id = $1 ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list sessions for %s: %v", ownerID, err)
		return nil, err
	}
	defer rows.Close()

	sessions := []model.Session{}
	for rows.Next() {
		var id, content string
		var updatedAt time.Time
		if err := rows.Scan(&id, &content, &updatedAt); err != nil {
			logger.Sugar.Warnf("Skipping unreadable session row for %s: %v", ownerID, err)
			continue
		}
		sessions = append(sessions, model.NewSession(id, content, updatedAt))
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) Get(ownerID, id string) (model.Session, error) {
	var content string
	var updatedAt time.Time
	err := r.DB.QueryRow(`SELECT content, updated_at FROM typing_sessions WHERE owner_id = $1 AND id = $2`, ownerID, id).
		Scan(&content, &updatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Sugar.Errorf("Failed to get session %s for %s: %v", id, ownerID, err)
		}
		return model.Session{}, err
	}
	return model.NewSession(id, content, updatedAt), nil
}

// LoadContent returns only the markup of a session.
func (r *SessionRepository) LoadContent(ownerID, id string) (string, error) {
	var content string
	err := r.DB.QueryRow(`SELECT content FROM typing_sessions WHERE owner_id = $1 AND id = $2`, ownerID, id).Scan(&content)
	if err != nil && err != sql.ErrNoRows {
		logger.Sugar.Errorf("Failed to load content of session %s: %v", id, err)
	}
	return content, err
}

func (r *SessionRepository) UpdateContent(ownerID, id, content string) (int64, error) {
	result, err := r.DB.Exec(`UPDATE typing_sessions SET content = $1, updated_at = NOW() WHERE owner_id = $2 AND id = $3`,
		content, ownerID, id)
	if err != nil {
		logger.Sugar.Errorf("Failed to update content for session %s: %v", id, err)
		return 0, err
	}
	return result.RowsAffected()
}

// SaveContent is UpdateContent for callers that only care about the error.
func (r *SessionRepository) SaveContent(ownerID, id, content string) error {
	_, err := r.UpdateContent(ownerID, id, content)
	return err
}

// DeleteUnlessLast removes a session unless it is the owner's only one, in
// which case it returns false and changes nothing. The owner's rows stay
// locked from the count to the delete, so concurrent deletes cannot remove
// every session. A missing session is sql.ErrNoRows.
func (r *SessionRepository) DeleteUnlessLast(ownerID, id string) (bool, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		logger.Sugar.Errorf("Failed to begin delete of session %s: %v", id, err)
		return false, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT id FROM typing_sessions WHERE owner_id = $1 FOR UPDATE`, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to lock sessions of %s: %v", ownerID, err)
		return false, err
	}
	count, found := 0, false
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			rows.Close()
			return false, err
		}
		count++
		found = found || sid == id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, err
	}

	if !found {
		return false, sql.ErrNoRows
	}
	if count <= 1 {
		return false, nil
	}

	if _, err := tx.Exec(`DELETE FROM typing_sessions WHERE owner_id = $1 AND id = $2`, ownerID, id); err != nil {
		logger.Sugar.Errorf("Failed to delete session %s: %v", id, err)
		return false, err
	}
	if err := tx.Commit(); err != nil {
		logger.Sugar.Errorf("Failed to commit delete of session %s: %v", id, err)
		return false, err
	}
	return true, nil
}

// GetPreferences returns sql.ErrNoRows when the owner never saved any.
func (r *SessionRepository) GetPreferences(ownerID string) (model.Preferences, error) {
	var p model.Preferences
	var mode string
	err := r.DB.QueryRow(`SELECT font_size, mode FROM preferences WHERE owner_id = $1`, ownerID).Scan(&p.FontSize, &mode)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Sugar.Errorf("Failed to get preferences for %s: %v", ownerID, err)
		}
		return model.Preferences{}, err
	}
	p.Mode = editor.Mode(mode)
	return p, nil
}

func (r *SessionRepository) SavePreferences(ownerID string, p model.Preferences) error {
	_, err := r.DB.Exec(`INSERT INTO preferences (owner_id, font_size, mode) VALUES ($1, $2, $3)
		ON CONFLICT (owner_id) DO UPDATE SET font_size = $2, mode = $3`, ownerID, p.FontSize, string(p.Mode))
	if err != nil {
		logger.Sugar.Errorf("Failed to save preferences for %s: %v", ownerID, err)
	}
	return err
}
