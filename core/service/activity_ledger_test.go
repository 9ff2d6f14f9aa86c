package service

import (
	"testing"
	"time"
)

func TestLedgerRecordAndGet(t *testing.T) {
	l := NewActivityLedger()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	l.RecordActivity("inst-1", "working")

	rec, ok := l.Get("inst-1")
	if !ok {
		t.Fatalf("expected record for inst-1")
	}
	if rec.Status != "working" {
		t.Fatalf("status = %q, want working", rec.Status)
	}
	if !rec.LastActivityAt.Equal(base) {
		t.Fatalf("last activity = %v, want %v", rec.LastActivityAt, base)
	}
}

func TestLedgerRecordResetsClock(t *testing.T) {
	l := NewActivityLedger()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	l.RecordActivity("inst-1", "working")

	later := base.Add(30 * time.Second)
	l.now = func() time.Time { return later }
	l.RecordActivity("inst-1", "working")

	rec, _ := l.Get("inst-1")
	if !rec.LastActivityAt.Equal(later) {
		t.Fatalf("last activity = %v, want %v", rec.LastActivityAt, later)
	}
}

func TestLedgerRemove(t *testing.T) {
	l := NewActivityLedger()
	l.RecordActivity("inst-1", "working")

	l.Remove("inst-1")
	if _, ok := l.Get("inst-1"); ok {
		t.Fatalf("expected record to be removed")
	}

	// Removing again is a no-op.
	l.Remove("inst-1")
	if l.Len() != 0 {
		t.Fatalf("len = %d, want 0", l.Len())
	}
}

func TestLedgerSnapshotIsACopy(t *testing.T) {
	l := NewActivityLedger()
	l.RecordActivity("inst-1", "working")
	l.RecordActivity("inst-2", "idle")

	snap := l.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot len = %d, want 2", len(snap))
	}

	l.Remove("inst-1")
	if len(snap) != 2 {
		t.Fatalf("snapshot mutated by Remove")
	}
}

func TestLedgerTouchGuard(t *testing.T) {
	l := NewActivityLedger()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }
	l.RecordActivity("inst-1", "working")

	// A fresher signal lands between observation and touch.
	newer := base.Add(10 * time.Second)
	l.now = func() time.Time { return newer }
	l.RecordActivity("inst-1", "working")

	if l.Touch("inst-1", base) {
		t.Fatalf("Touch with stale seen timestamp should not apply")
	}
	rec, _ := l.Get("inst-1")
	if !rec.LastActivityAt.Equal(newer) {
		t.Fatalf("stale touch clobbered fresher record")
	}

	// With the current timestamp the touch applies.
	touched := newer.Add(5 * time.Second)
	l.now = func() time.Time { return touched }
	if !l.Touch("inst-1", newer) {
		t.Fatalf("Touch with matching seen timestamp should apply")
	}
	rec, _ = l.Get("inst-1")
	if !rec.LastActivityAt.Equal(touched) {
		t.Fatalf("last activity = %v, want %v", rec.LastActivityAt, touched)
	}
}

func TestLedgerSetStatusGuard(t *testing.T) {
	l := NewActivityLedger()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }
	l.RecordActivity("inst-1", "working")

	if !l.SetStatus("inst-1", "idle", base) {
		t.Fatalf("SetStatus with matching seen timestamp should apply")
	}
	rec, _ := l.Get("inst-1")
	if rec.Status != "idle" {
		t.Fatalf("status = %q, want idle", rec.Status)
	}

	// Record refreshed since the caller looked: the write is dropped.
	newer := base.Add(time.Second)
	l.now = func() time.Time { return newer }
	l.RecordActivity("inst-1", "working")
	if l.SetStatus("inst-1", "idle", base) {
		t.Fatalf("SetStatus with stale seen timestamp should not apply")
	}
	rec, _ = l.Get("inst-1")
	if rec.Status != "working" {
		t.Fatalf("stale SetStatus clobbered fresher record")
	}

	if l.SetStatus("missing", "idle", base) {
		t.Fatalf("SetStatus on untracked entity should not apply")
	}
}
