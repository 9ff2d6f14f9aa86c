// Package models defines domain models for Beacon.
package models

import "time"

// Instance statuses.
const (
	StatusIdle    = "idle"
	StatusWorking = "working"
	StatusError   = "error"
)

// Instance represents a tracked interactive session, local or on a
// remote machine. MachineID is empty for local instances.
type Instance struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	WorkingDirectory string    `json:"working_directory"`
	Status           string    `json:"status"` // idle, working, error
	MachineID        string    `json:"machine_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsLocal reports whether the instance runs on this machine.
func (i *Instance) IsLocal() bool {
	return i.MachineID == ""
}
