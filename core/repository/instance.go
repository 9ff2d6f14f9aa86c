// Package repository provides the data access layer for Beacon.
package repository

import (
	"database/sql"
	"errors"
	"time"

	"beacon/core/models"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// InstanceRepository handles persistence of instances.
type InstanceRepository struct {
	db *sql.DB
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(db *sql.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// Create stores a new instance.
func (r *InstanceRepository) Create(inst *models.Instance) error {
	query := `
		INSERT INTO instances (id, name, working_directory, status, machine_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var machineID *string
	if inst.MachineID != "" {
		machineID = &inst.MachineID
	}

	_, err := r.db.Exec(
		query,
		inst.ID,
		inst.Name,
		inst.WorkingDirectory,
		inst.Status,
		machineID,
		inst.CreatedAt,
		inst.UpdatedAt,
	)
	return err
}

// GetByID retrieves a single instance. Returns ErrNotFound if no such
// instance exists.
func (r *InstanceRepository) GetByID(id string) (*models.Instance, error) {
	query := `
		SELECT id, name, working_directory, status, machine_id, created_at, updated_at
		FROM instances
		WHERE id = ?
	`
	row := r.db.QueryRow(query, id)
	inst, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return inst, err
}

// List retrieves all instances ordered by creation time.
func (r *InstanceRepository) List() ([]*models.Instance, error) {
	query := `
		SELECT id, name, working_directory, status, machine_id, created_at, updated_at
		FROM instances
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []*models.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}

	return instances, rows.Err()
}

// CountByMachine returns the number of instances hosted on a machine.
func (r *InstanceRepository) CountByMachine(machineID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM instances WHERE machine_id = ?`, machineID).Scan(&count)
	return count, err
}

// UpdateStatus writes a new status and updated_at for an instance.
func (r *InstanceRepository) UpdateStatus(id, status string, updatedAt time.Time) error {
	result, err := r.db.Exec(
		`UPDATE instances SET status = ?, updated_at = ? WHERE id = ?`,
		status, updatedAt, id,
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

// Delete removes an instance. Deleting an absent instance is not an error.
func (r *InstanceRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM instances WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInstance(row rowScanner) (*models.Instance, error) {
	inst := &models.Instance{}
	var machineID sql.NullString

	err := row.Scan(
		&inst.ID,
		&inst.Name,
		&inst.WorkingDirectory,
		&inst.Status,
		&machineID,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if machineID.Valid {
		inst.MachineID = machineID.String
	}

	return inst, nil
}
