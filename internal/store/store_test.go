package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/paperframe/internal/plugin"
	"github.com/ayusman/paperframe/internal/schedule"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	tables := []string{"schedule_state", "instances", "refresh_history"}
	for _, table := range tables {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestSchedule_SnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	repo := s.Schedule()

	// Fresh database: no snapshot yet.
	if _, err := repo.LoadSnapshot(); !errors.Is(err, schedule.ErrNoSnapshot) {
		t.Fatalf("LoadSnapshot on empty db = %v, want ErrNoSnapshot", err)
	}

	want := schedule.Snapshot{
		Paused:      true,
		LastRefresh: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
	}
	if err := repo.SaveSnapshot(want); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	got, err := repo.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if !got.Paused {
		t.Error("paused flag lost")
	}
	if !got.LastRefresh.Equal(want.LastRefresh) {
		t.Errorf("last refresh = %v, want %v", got.LastRefresh, want.LastRefresh)
	}

	// A second save overwrites the single row.
	if err := repo.SaveSnapshot(schedule.Snapshot{Paused: false}); err != nil {
		t.Fatalf("second SaveSnapshot: %v", err)
	}
	got, err = repo.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if got.Paused {
		t.Error("pause flag not cleared by overwrite")
	}
	if !got.LastRefresh.IsZero() {
		t.Errorf("last refresh = %v, want zero", got.LastRefresh)
	}
}

func TestInstances_CRUD(t *testing.T) {
	s := newTestStore(t)
	repo := s.Instances()

	inst := &Instance{
		ID:       "inst-1",
		PluginID: "clock",
		Name:     "Kitchen clock",
		Settings: plugin.Settings{"time_format": "24h"},
	}
	if err := repo.Create(inst); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID("inst-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PluginID != "clock" || got.Settings["time_format"] != "24h" {
		t.Errorf("got %+v", got)
	}

	if err := repo.UpdateSettings("inst-1", plugin.Settings{"time_format": "12h"}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	got, err = repo.GetByID("inst-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Settings["time_format"] != "12h" {
		t.Errorf("settings not updated: %v", got.Settings)
	}

	if err := repo.Delete("inst-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID("inst-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID after delete = %v, want ErrNotFound", err)
	}
	if err := repo.Delete("inst-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestInstances_SingleActive(t *testing.T) {
	s := newTestStore(t)
	repo := s.Instances()

	for _, id := range []string{"a", "b"} {
		if err := repo.Create(&Instance{ID: id, PluginID: "clock"}); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}

	if _, err := repo.Active(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Active with none set = %v, want ErrNotFound", err)
	}

	if err := repo.SetActive("a"); err != nil {
		t.Fatalf("SetActive(a): %v", err)
	}
	if err := repo.SetActive("b"); err != nil {
		t.Fatalf("SetActive(b): %v", err)
	}

	active, err := repo.Active()
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if active.ID != "b" {
		t.Errorf("active = %s, want b", active.ID)
	}

	// Exactly one row carries the flag.
	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM instances WHERE active = 1").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("%d active instances, want 1", count)
	}

	if err := repo.SetActive("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetActive(missing) = %v, want ErrNotFound", err)
	}

	if err := repo.ClearActive(); err != nil {
		t.Fatalf("ClearActive: %v", err)
	}
	if _, err := repo.Active(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Active after clear = %v, want ErrNotFound", err)
	}
}

func TestHistory_AddAndRecent(t *testing.T) {
	s := newTestStore(t)
	repo := s.History()

	for i, outcome := range []string{OutcomeOK, OutcomeError, OutcomeDegraded} {
		rec := &RefreshRecord{
			InstanceID: "inst-1",
			PluginID:   "clock",
			Reason:     "scheduled",
			Outcome:    outcome,
			Duration:   time.Duration(i+1) * time.Second,
			StartedAt:  time.Now(),
		}
		if err := repo.Add(rec); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if rec.ID == 0 {
			t.Error("Add did not set the record ID")
		}
	}

	recent, err := repo.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent returned %d records, want 2", len(recent))
	}
	if recent[0].Outcome != OutcomeDegraded {
		t.Errorf("newest outcome = %s, want degraded", recent[0].Outcome)
	}
	if recent[0].Duration != 3*time.Second {
		t.Errorf("duration = %v, want 3s", recent[0].Duration)
	}
}
