package service

import (
	"sync"
	"time"
)

// ActivityRecord tracks the last observed activity for one entity.
type ActivityRecord struct {
	EntityID       string
	LastActivityAt time.Time
	Status         string
}

// ActivityLedger is the in-memory map of entity to last-activity
// timestamp and last-known status. It is mutated from hook handlers,
// the sweep loop, and verification calls concurrently.
type ActivityLedger struct {
	mu      sync.RWMutex
	records map[string]ActivityRecord
	now     func() time.Time
}

// NewActivityLedger creates an empty ledger.
func NewActivityLedger() *ActivityLedger {
	return &ActivityLedger{
		records: make(map[string]ActivityRecord),
		now:     time.Now,
	}
}

// RecordActivity upserts the entity's record, stamping the current
// time. Every signal resets the timeout clock.
func (l *ActivityLedger) RecordActivity(entityID, status string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[entityID] = ActivityRecord{
		EntityID:       entityID,
		LastActivityAt: l.now(),
		Status:         status,
	}
}

// Remove drops the entity's record. Removing an absent entity is a no-op.
func (l *ActivityLedger) Remove(entityID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, entityID)
}

// Get returns the entity's record, if tracked.
func (l *ActivityLedger) Get(entityID string) (ActivityRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[entityID]
	return rec, ok
}

// Snapshot returns a point-in-time copy of all records so a sweep can
// iterate while concurrent RecordActivity calls keep mutating the map.
func (l *ActivityLedger) Snapshot() []ActivityRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records := make([]ActivityRecord, 0, len(l.records))
	for _, rec := range l.records {
		records = append(records, rec)
	}
	return records
}

// Len returns the number of tracked entities.
func (l *ActivityLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Touch resets the entity's timestamp to now, but only if the record
// has not been updated since the caller observed it at seen. This keeps
// updates last-write-wins by timestamp: a sweep extending a timeout
// never clobbers a fresher hook signal.
func (l *ActivityLedger) Touch(entityID string, seen time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[entityID]
	if !ok || !rec.LastActivityAt.Equal(seen) {
		return false
	}
	rec.LastActivityAt = l.now()
	l.records[entityID] = rec
	return true
}

// SetStatus updates the entity's status, guarded the same way as Touch:
// a record refreshed since seen is left alone, so a late-arriving
// timeout cannot resurrect over a more current signal.
func (l *ActivityLedger) SetStatus(entityID, status string, seen time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[entityID]
	if !ok || !rec.LastActivityAt.Equal(seen) {
		return false
	}
	rec.Status = status
	l.records[entityID] = rec
	return true
}
