package models

import "time"

// Tunnel health states.
const (
	TunnelHealthy  = "healthy"
	TunnelDegraded = "degraded"
	TunnelDown     = "down"
)

// TunnelStatus describes one reverse tunnel from a remote machine back
// to the control plane. Mutated only by the tunnel monitor's probe
// loop and its guarded reconnect operation.
type TunnelStatus struct {
	MachineID         string    `json:"machine_id"`
	MachineName       string    `json:"machine_name"`
	HealthState       string    `json:"health_state"` // healthy, degraded, down
	RemotePort        int       `json:"remote_port"`
	LocalPort         int       `json:"local_port"`
	InstanceCount     int       `json:"instance_count"`
	LastSeenAt        time.Time `json:"last_seen_at"`
	LastHealthCheck   time.Time `json:"last_health_check"`
	ReconnectAttempts int       `json:"reconnect_attempts"`
	Error             string    `json:"error,omitempty"`
}
