// Package schedule owns the refresh timetable: the daily update time, the
// pause flag and last-refresh bookkeeping. The panel must be refreshed at
// least once per calendar day even while updates are administratively
// paused, so a day with no prior refresh is always due at the scheduled
// minute regardless of the pause flag.
package schedule

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBadUpdateTime is returned for update times not of the form HH:MM with
// in-range fields.
var ErrBadUpdateTime = errors.New("schedule: invalid update time")

// UpdateTime is the wall-clock minute a refresh is scheduled at.
type UpdateTime struct {
	Hour   int
	Minute int
}

// ParseUpdateTime parses a strict "HH:MM" string. Parsing then formatting
// returns the input unchanged for any in-range value.
func ParseUpdateTime(s string) (UpdateTime, error) {
	var t UpdateTime
	if len(s) != 5 || s[2] != ':' {
		return t, fmt.Errorf("%w: %q", ErrBadUpdateTime, s)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return t, fmt.Errorf("%w: %q", ErrBadUpdateTime, s)
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return t, fmt.Errorf("%w: %q out of range", ErrBadUpdateTime, s)
	}
	t.Hour, t.Minute = h, m
	return t, nil
}

// String formats the update time as "HH:MM".
func (t UpdateTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Snapshot is the durable part of the scheduler state, written on every
// mutation and read back at startup. A zero LastRefresh means the panel has
// never been refreshed.
type Snapshot struct {
	Paused      bool
	LastRefresh time.Time
}

// SnapshotStore persists the schedule snapshot across process restarts.
type SnapshotStore interface {
	LoadSnapshot() (Snapshot, error)
	SaveSnapshot(Snapshot) error
}

// ErrNoSnapshot is returned by a SnapshotStore that has nothing persisted
// yet; the scheduler starts from a clean state.
var ErrNoSnapshot = errors.New("schedule: no snapshot")

// Scheduler decides whether a refresh is due at a given instant. All time
// queries are pure: they mutate nothing and are safe to call concurrently
// with Pause, Resume and MarkRefreshed.
type Scheduler struct {
	mu          sync.Mutex
	at          UpdateTime
	loc         *time.Location
	paused      bool
	lastRefresh time.Time // date precision, zero means never
	store       SnapshotStore
}

// New builds a scheduler for the given update time and timezone, restoring
// any persisted snapshot from store. A nil store keeps state in memory only.
func New(at UpdateTime, loc *time.Location, store SnapshotStore) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{at: at, loc: loc, store: store}
	if store != nil {
		snap, err := store.LoadSnapshot()
		switch {
		case errors.Is(err, ErrNoSnapshot):
			// First run.
		case err != nil:
			return nil, fmt.Errorf("schedule: restore snapshot: %w", err)
		default:
			s.paused = snap.Paused
			if !snap.LastRefresh.IsZero() {
				s.lastRefresh = dateOf(snap.LastRefresh.In(loc))
			}
		}
	}
	return s, nil
}

// IsDue reports whether a refresh should run at now. It is true at the
// scheduled minute when the scheduler is not paused, and at the scheduled
// minute on any day with no prior refresh even when paused (the burn-in
// safety clause). A paused scheduler that already refreshed today stays
// quiet.
func (s *Scheduler) IsDue(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	local := now.In(s.loc)
	if local.Hour() != s.at.Hour || local.Minute() != s.at.Minute {
		return false
	}
	return !s.paused || s.needsDailyRefreshLocked(local)
}

// NeedsDailyRefresh reports whether no refresh has happened yet today.
func (s *Scheduler) NeedsDailyRefresh(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needsDailyRefreshLocked(now.In(s.loc))
}

func (s *Scheduler) needsDailyRefreshLocked(local time.Time) bool {
	return s.lastRefresh.IsZero() || s.lastRefresh.Before(dateOf(local))
}

// MarkRefreshed records a successful refresh at now. Callers invoke it
// exactly once per successful refresh. The stored date never moves
// backwards.
func (s *Scheduler) MarkRefreshed(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := dateOf(now.In(s.loc))
	if d.After(s.lastRefresh) {
		s.lastRefresh = d
	}
	return s.persistLocked()
}

// Pause suspends scheduled refreshes. Safe to call at any time, including
// when already paused; takes effect on the next tick.
func (s *Scheduler) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	return s.persistLocked()
}

// Resume re-enables scheduled refreshes.
func (s *Scheduler) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	return s.persistLocked()
}

// Paused reports the pause flag.
func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// LastRefresh returns the date of the last successful refresh, with ok
// false if the panel has never been refreshed.
func (s *Scheduler) LastRefresh() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRefresh, !s.lastRefresh.IsZero()
}

// UpdateTime returns the configured daily update time.
func (s *Scheduler) UpdateTime() UpdateTime {
	return s.at
}

// NextUpdate returns the next scheduled instant strictly after now. The
// result is always within (now, now+24h].
func (s *Scheduler) NextUpdate(now time.Time) time.Time {
	local := now.In(s.loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), s.at.Hour, s.at.Minute, 0, 0, s.loc)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// UntilNext returns the duration from now until the next scheduled instant.
func (s *Scheduler) UntilNext(now time.Time) time.Duration {
	return s.NextUpdate(now).Sub(now)
}

func (s *Scheduler) persistLocked() error {
	if s.store == nil {
		return nil
	}
	return s.store.SaveSnapshot(Snapshot{Paused: s.paused, LastRefresh: s.lastRefresh})
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
