package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/paperframe/internal/plugin"
)

// Instance is a plugin instance record.
type Instance struct {
	ID        string
	PluginID  string
	Name      string
	Settings  plugin.Settings
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AsPluginInstance converts the record to the pipeline's instance value.
func (i *Instance) AsPluginInstance() plugin.Instance {
	return plugin.Instance{
		InstanceID: i.ID,
		PluginID:   i.PluginID,
		Settings:   i.Settings,
	}
}

// InstanceRepository provides CRUD operations for plugin instances.
type InstanceRepository struct {
	db *sql.DB
}

// Instances returns the instance repository for this store.
func (s *Store) Instances() *InstanceRepository {
	return &InstanceRepository{db: s.db}
}

// Create inserts a new instance.
func (r *InstanceRepository) Create(inst *Instance) error {
	settings, err := marshalSettings(inst.Settings)
	if err != nil {
		return err
	}

	now := time.Now()
	inst.CreatedAt = now
	inst.UpdatedAt = now

	active := 0
	if inst.Active {
		active = 1
	}

	_, err = r.db.Exec(
		`INSERT INTO instances (id, plugin_id, name, settings, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inst.ID, inst.PluginID, inst.Name, settings, active, inst.CreatedAt, inst.UpdatedAt,
	)
	return err
}

// GetByID retrieves an instance by its ID.
func (r *InstanceRepository) GetByID(id string) (*Instance, error) {
	row := r.db.QueryRow(
		`SELECT id, plugin_id, name, settings, active, created_at, updated_at
		 FROM instances WHERE id = ?`,
		id,
	)
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return inst, nil
}

// List retrieves all instances, oldest first.
func (r *InstanceRepository) List() ([]*Instance, error) {
	rows, err := r.db.Query(
		`SELECT id, plugin_id, name, settings, active, created_at, updated_at
		 FROM instances ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []*Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return instances, nil
}

// Active returns the single active instance. Returns ErrNotFound when no
// instance is active.
func (r *InstanceRepository) Active() (*Instance, error) {
	row := r.db.QueryRow(
		`SELECT id, plugin_id, name, settings, active, created_at, updated_at
		 FROM instances WHERE active = 1 LIMIT 1`,
	)
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return inst, nil
}

// SetActive marks one instance active and clears the flag on every other.
func (r *InstanceRepository) SetActive(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE instances SET active = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(
		`UPDATE instances SET active = 0 WHERE id != ? AND active = 1`, id,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// ClearActive deactivates every instance.
func (r *InstanceRepository) ClearActive() error {
	_, err := r.db.Exec(`UPDATE instances SET active = 0 WHERE active = 1`)
	return err
}

// Update replaces the name and settings of an instance.
func (r *InstanceRepository) Update(inst *Instance) error {
	raw, err := marshalSettings(inst.Settings)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(
		`UPDATE instances SET name = ?, settings = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		inst.Name, raw, inst.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSettings replaces the settings of an instance.
func (r *InstanceRepository) UpdateSettings(id string, settings plugin.Settings) error {
	raw, err := marshalSettings(settings)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(
		`UPDATE instances SET settings = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		raw, id,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an instance.
func (r *InstanceRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM instances WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*Instance, error) {
	inst := &Instance{}
	var settings string
	var active int

	err := row.Scan(&inst.ID, &inst.PluginID, &inst.Name, &settings, &active, &inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(settings), &inst.Settings); err != nil {
		return nil, fmt.Errorf("instance %s: bad settings: %w", inst.ID, err)
	}
	inst.Active = active != 0
	return inst, nil
}

func marshalSettings(s plugin.Settings) (string, error) {
	if s == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
