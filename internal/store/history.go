package store

import (
	"database/sql"
	"time"
)

// Refresh outcomes recorded in the history log.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded" // stale artifact shown after a generation failure
	OutcomeError    = "error"
)

// RefreshRecord is one attempted refresh cycle.
type RefreshRecord struct {
	ID         int64
	InstanceID string
	PluginID   string
	Reason     string
	Outcome    string
	Error      string
	Duration   time.Duration
	StartedAt  time.Time
}

// HistoryRepository records refresh cycle outcomes.
type HistoryRepository struct {
	db *sql.DB
}

// History returns the refresh history repository for this store.
func (s *Store) History() *HistoryRepository {
	return &HistoryRepository{db: s.db}
}

// Add appends a refresh record.
func (r *HistoryRepository) Add(rec *RefreshRecord) error {
	result, err := r.db.Exec(
		`INSERT INTO refresh_history (instance_id, plugin_id, reason, outcome, error, duration_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.InstanceID, rec.PluginID, rec.Reason, rec.Outcome, rec.Error,
		rec.Duration.Milliseconds(), rec.StartedAt,
	)
	if err != nil {
		return err
	}
	rec.ID, err = result.LastInsertId()
	return err
}

// Recent returns the newest n records, newest first.
func (r *HistoryRepository) Recent(n int) ([]*RefreshRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, instance_id, plugin_id, reason, outcome, error, duration_ms, started_at
		 FROM refresh_history ORDER BY id DESC LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*RefreshRecord
	for rows.Next() {
		rec := &RefreshRecord{}
		var durationMs int64
		if err := rows.Scan(&rec.ID, &rec.InstanceID, &rec.PluginID, &rec.Reason,
			&rec.Outcome, &rec.Error, &durationMs, &rec.StartedAt); err != nil {
			return nil, err
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
