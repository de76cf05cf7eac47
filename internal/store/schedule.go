package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/ayusman/paperframe/internal/schedule"
)

// dateLayout is the persisted form of the last refresh date.
const dateLayout = "2006-01-02"

// ScheduleRepository persists the scheduler snapshot. It implements
// schedule.SnapshotStore.
type ScheduleRepository struct {
	db *sql.DB
}

// Schedule returns the schedule repository for this store.
func (s *Store) Schedule() *ScheduleRepository {
	return &ScheduleRepository{db: s.db}
}

// LoadSnapshot reads the persisted snapshot. Returns schedule.ErrNoSnapshot
// on a fresh database.
func (r *ScheduleRepository) LoadSnapshot() (schedule.Snapshot, error) {
	var paused int
	var lastRefresh sql.NullString

	err := r.db.QueryRow(
		`SELECT paused, last_refresh FROM schedule_state WHERE id = 1`,
	).Scan(&paused, &lastRefresh)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return schedule.Snapshot{}, schedule.ErrNoSnapshot
		}
		return schedule.Snapshot{}, err
	}

	snap := schedule.Snapshot{Paused: paused != 0}
	if lastRefresh.Valid && lastRefresh.String != "" {
		d, err := time.Parse(dateLayout, lastRefresh.String)
		if err != nil {
			return schedule.Snapshot{}, err
		}
		snap.LastRefresh = d
	}
	return snap, nil
}

// SaveSnapshot writes the snapshot, replacing any previous row.
func (r *ScheduleRepository) SaveSnapshot(snap schedule.Snapshot) error {
	paused := 0
	if snap.Paused {
		paused = 1
	}
	lastRefresh := ""
	if !snap.LastRefresh.IsZero() {
		lastRefresh = snap.LastRefresh.Format(dateLayout)
	}

	_, err := r.db.Exec(
		`INSERT INTO schedule_state (id, paused, last_refresh, updated_at)
		 VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET
			paused = excluded.paused,
			last_refresh = excluded.last_refresh,
			updated_at = CURRENT_TIMESTAMP`,
		paused, lastRefresh,
	)
	return err
}
