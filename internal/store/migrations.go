package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Schedule snapshot - a single row surviving process restarts
		`CREATE TABLE IF NOT EXISTS schedule_state (
			id INTEGER PRIMARY KEY CHECK(id = 1),
			paused INTEGER NOT NULL DEFAULT 0,
			last_refresh TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Plugin instances - administrator-created provider configurations
		`CREATE TABLE IF NOT EXISTS instances (
			id TEXT PRIMARY KEY,
			plugin_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			settings TEXT NOT NULL DEFAULT '{}',
			active INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Refresh history - one row per attempted refresh cycle
		`CREATE TABLE IF NOT EXISTS refresh_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			instance_id TEXT NOT NULL,
			plugin_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			outcome TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_instances_plugin_id ON instances(plugin_id)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_history_started_at ON refresh_history(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
