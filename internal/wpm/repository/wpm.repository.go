package repository

import (
	"database/sql"

	"deshhindi/internal/wpm/model"
	"deshhindi/pkg/logger"
)

type ResultRepository struct {
	DB *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{DB: db}
}

func (r *ResultRepository) Save(ownerID string, res model.Result) error {
	_, err := r.DB.Exec(`INSERT INTO wpm_results (id, owner_id, passage, wpm, accuracy, duration_ms, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		res.ID, ownerID, res.Passage, res.WPM, res.Accuracy, res.DurationMs, res.FinishedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to save wpm result %s for %s: %v", res.ID, ownerID, err)
	}
	return err
}

// ListByOwner returns the owner's results, best first.
func (r *ResultRepository) ListByOwner(ownerID string) ([]model.Result, error) {
	rows, err := r.DB.Query(`SELECT id, passage, wpm, accuracy, duration_ms, finished_at FROM wpm_results
		WHERE owner_id = $1 ORDER BY wpm DESC, accuracy DESC, finished_at DESC`, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list wpm results for %s: %v", ownerID, err)
		return nil, err
	}
	defer rows.Close()

	results := []model.Result{}
	for rows.Next() {
		var res model.Result
		if err := rows.Scan(&res.ID, &res.Passage, &res.WPM, &res.Accuracy, &res.DurationMs, &res.FinishedAt); err != nil {
			logger.Sugar.Warnf("Skipping unreadable wpm row for %s: %v", ownerID, err)
			continue
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
