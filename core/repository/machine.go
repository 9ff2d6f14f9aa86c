package repository

import (
	"database/sql"

	"beacon/core/models"
)

// MachineRepository handles persistence of remote machines.
type MachineRepository struct {
	db *sql.DB
}

// NewMachineRepository creates a new machine repository.
func NewMachineRepository(db *sql.DB) *MachineRepository {
	return &MachineRepository{db: db}
}

// Create stores a new remote machine.
func (r *MachineRepository) Create(m *models.RemoteMachine) error {
	query := `
		INSERT INTO remote_machines (id, name, hostname, port, username, credential_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var credentialRef *string
	if m.CredentialRef != "" {
		credentialRef = &m.CredentialRef
	}

	_, err := r.db.Exec(
		query,
		m.ID,
		m.Name,
		m.Hostname,
		m.Port,
		m.Username,
		credentialRef,
		m.CreatedAt,
	)
	return err
}

// GetByID retrieves a single machine. Returns ErrNotFound if no such
// machine exists.
func (r *MachineRepository) GetByID(id string) (*models.RemoteMachine, error) {
	query := `
		SELECT id, name, hostname, port, username, credential_ref, created_at
		FROM remote_machines
		WHERE id = ?
	`
	row := r.db.QueryRow(query, id)
	m, err := scanMachine(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return m, err
}

// List retrieves all machines ordered by name.
func (r *MachineRepository) List() ([]*models.RemoteMachine, error) {
	query := `
		SELECT id, name, hostname, port, username, credential_ref, created_at
		FROM remote_machines
		ORDER BY name ASC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var machines []*models.RemoteMachine
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, err
		}
		machines = append(machines, m)
	}

	return machines, rows.Err()
}

// Delete removes a machine. Deleting an absent machine is not an error.
func (r *MachineRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM remote_machines WHERE id = ?`, id)
	return err
}

func scanMachine(row rowScanner) (*models.RemoteMachine, error) {
	m := &models.RemoteMachine{}
	var credentialRef sql.NullString

	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Hostname,
		&m.Port,
		&m.Username,
		&credentialRef,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if credentialRef.Valid {
		m.CredentialRef = credentialRef.String
	}

	return m, nil
}
