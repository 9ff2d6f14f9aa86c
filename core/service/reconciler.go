package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"beacon/core/models"
	"beacon/core/repository"
)

// Hook events accepted by RecordActivity.
const (
	HookStarted  = "started"
	HookFinished = "finished"
	HookError    = "error"
)

// instanceStore is the slice of the persistence layer the reconciler
// needs: authoritative status reads and row-level status writes.
type instanceStore interface {
	GetByID(id string) (*models.Instance, error)
	UpdateStatus(id, status string, updatedAt time.Time) error
}

// activityLogStore appends to the append-only activity log.
type activityLogStore interface {
	Create(entry *models.ActivityLog) error
}

// Broadcaster pushes fire-and-forget events to UI subscribers.
type Broadcaster interface {
	Publish(event models.Event)
}

// LocalActivityProbe is the file-mtime heuristic consulted before
// demoting a local instance.
type LocalActivityProbe interface {
	Check(workingDirectory string) string
}

// Reconciler merges hook signals and file-activity evidence into one
// authoritative status per instance. It owns the ledger sweep and the
// timeout-driven working-to-idle demotion; every other transition comes
// in through RecordActivity.
type Reconciler struct {
	ledger    *ActivityLedger
	instances instanceStore
	logs      activityLogStore
	broadcast Broadcaster
	probe     LocalActivityProbe

	sweepInterval   time.Duration
	activityTimeout time.Duration
	now             func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewReconciler creates a reconciler. The probe may be nil, in which
// case local instances are demoted on timeout alone.
func NewReconciler(ledger *ActivityLedger, instances instanceStore, logs activityLogStore, broadcast Broadcaster, probe LocalActivityProbe, sweepInterval, activityTimeout time.Duration) *Reconciler {
	return &Reconciler{
		ledger:          ledger,
		instances:       instances,
		logs:            logs,
		broadcast:       broadcast,
		probe:           probe,
		sweepInterval:   sweepInterval,
		activityTimeout: activityTimeout,
		now:             time.Now,
	}
}

// RecordActivity is the hook system's integration point. It maps a
// lifecycle event to a status, stamps the ledger, and records the
// transition in the store, the activity log, and the broadcast channel.
func (r *Reconciler) RecordActivity(entityID, event string) error {
	var status string
	switch event {
	case HookStarted:
		status = models.StatusWorking
	case HookFinished:
		status = models.StatusIdle
	case HookError:
		status = models.StatusError
	default:
		return fmt.Errorf("%w: unknown hook event %q", ErrInvalidInput, event)
	}

	inst, err := r.instances.GetByID(entityID)
	if errors.Is(err, repository.ErrNotFound) {
		// The instance disappeared between resolution and recording.
		// Stop tracking it; this is not an error.
		r.ledger.Remove(entityID)
		return nil
	}
	if err != nil {
		return err
	}

	r.ledger.RecordActivity(entityID, status)

	if inst.Status == status {
		return nil
	}

	now := r.now()
	if err := r.instances.UpdateStatus(entityID, status, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.ledger.Remove(entityID)
			return nil
		}
		return err
	}

	r.announce(inst, status, now)
	return nil
}

// Start launches the periodic sweep loop. Calling Start twice is a no-op.
func (r *Reconciler) Start() {
	if r.cancel != nil {
		return
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	go r.sweepLoop()
	log.Printf("Status reconciler started (interval: %v, activity timeout: %v)", r.sweepInterval, r.activityTimeout)
}

// Stop halts the sweep loop. Safe to call without Start, or twice.
func (r *Reconciler) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.cancel = nil
}

func (r *Reconciler) sweepLoop() {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(r.now())
		}
	}
}

// Sweep runs one reconciliation pass over the ledger snapshot. A
// failure checking one entity is logged and does not abort the pass
// for the others.
func (r *Reconciler) Sweep(now time.Time) {
	for _, rec := range r.ledger.Snapshot() {
		if rec.Status != models.StatusWorking {
			continue
		}
		if now.Sub(rec.LastActivityAt) < r.activityTimeout {
			continue
		}
		if err := r.checkTimedOut(rec, now); err != nil {
			log.Printf("Reconciler: check for %s failed: %v", rec.EntityID, err)
		}
	}
}

// checkTimedOut handles one entity whose working timeout has elapsed.
func (r *Reconciler) checkTimedOut(rec ActivityRecord, now time.Time) error {
	inst, err := r.instances.GetByID(rec.EntityID)
	if errors.Is(err, repository.ErrNotFound) {
		r.ledger.Remove(rec.EntityID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read instance: %w", err)
	}

	// Already transitioned via another path; this is a stale timeout
	// racing a real update, not an error.
	if inst.Status != models.StatusWorking {
		r.ledger.Remove(rec.EntityID)
		return nil
	}

	// Independent evidence of activity extends the timeout. Tool-less
	// "thinking" time must not be mistaken for idleness.
	if inst.IsLocal() && r.probe != nil {
		if r.probe.Check(inst.WorkingDirectory) == models.StatusWorking {
			r.ledger.Touch(rec.EntityID, rec.LastActivityAt)
			return nil
		}
	}

	if err := r.instances.UpdateStatus(inst.ID, models.StatusIdle, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.ledger.Remove(rec.EntityID)
			return nil
		}
		return fmt.Errorf("write status: %w", err)
	}

	r.ledger.SetStatus(inst.ID, models.StatusIdle, rec.LastActivityAt)
	r.announce(inst, models.StatusIdle, now)
	return nil
}

// announce records a transition in the activity log and on the
// broadcast channel. Both are best-effort.
func (r *Reconciler) announce(inst *models.Instance, status string, now time.Time) {
	var message string
	switch status {
	case models.StatusWorking:
		message = fmt.Sprintf("%s started working", inst.Name)
	case models.StatusIdle:
		message = fmt.Sprintf("%s finished working", inst.Name)
	case models.StatusError:
		message = fmt.Sprintf("%s reported an error", inst.Name)
	}

	if err := r.logs.Create(&models.ActivityLog{
		EntityID:   inst.ID,
		EntityName: inst.Name,
		EventType:  "status_change",
		Message:    message,
		CreatedAt:  now,
	}); err != nil {
		log.Printf("Failed to append activity log for %s: %v", inst.ID, err)
	}

	if r.broadcast != nil {
		r.broadcast.Publish(models.Event{
			Type:     models.EventStatusChanged,
			EntityID: inst.ID,
			Payload: map[string]string{
				"name":   inst.Name,
				"status": status,
			},
			Timestamp: now,
		})
	}
}
