package models

import "time"

// Event types pushed to UI subscribers.
const (
	EventStatusChanged = "status_changed"
	EventActivityLog   = "activity_log"
	EventTunnelChanged = "tunnel_changed"
)

// Event is one broadcast message to UI subscribers. Delivery is
// best-effort; no acknowledgment is expected.
type Event struct {
	Type      string      `json:"type"`
	EntityID  string      `json:"entity_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
