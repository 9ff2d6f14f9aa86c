package models

import "time"

// ActivityLog represents one append-only activity-log entry describing
// a status transition or operator-visible event.
type ActivityLog struct {
	ID         int64     `json:"id"`
	EntityID   string    `json:"entity_id"`
	EntityName string    `json:"entity_name,omitempty"`
	EventType  string    `json:"event_type"` // status_change, hook, tunnel, system
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}
