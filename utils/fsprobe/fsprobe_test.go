package fsprobe

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFileAt(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
}

func TestCheckReportsRecentActivity(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeFileAt(t, filepath.Join(dir, "session.log"), now.Add(-10*time.Second))

	p := New(45 * time.Second)
	if got := p.Check(dir); got != StatusWorking {
		t.Fatalf("Check = %q, want working", got)
	}
}

func TestCheckReportsIdleForStaleFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeFileAt(t, filepath.Join(dir, "session.log"), now.Add(-10*time.Minute))

	p := New(45 * time.Second)
	if got := p.Check(dir); got != StatusIdle {
		t.Fatalf("Check = %q, want idle", got)
	}
}

func TestCheckFindsNestedActivity(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeFileAt(t, filepath.Join(dir, "src", "pkg", "main.go"), now.Add(-5*time.Second))

	p := New(45 * time.Second)
	if got := p.Check(dir); got != StatusWorking {
		t.Fatalf("Check = %q, want working for nested file", got)
	}
}

func TestCheckIgnoresDotDirectories(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	// Fresh churn inside .git must not read as agent activity.
	writeFileAt(t, filepath.Join(dir, ".git", "index"), now)
	writeFileAt(t, filepath.Join(dir, "main.go"), now.Add(-10*time.Minute))

	p := New(45 * time.Second)
	if got := p.Check(dir); got != StatusIdle {
		t.Fatalf("Check = %q, want idle when only dotdirs are fresh", got)
	}
}

func TestCheckIgnoresDeepFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeFileAt(t, filepath.Join(dir, "a", "b", "c", "d", "deep.txt"), now)

	p := New(45 * time.Second)
	if got := p.Check(dir); got != StatusIdle {
		t.Fatalf("Check = %q, want idle beyond the depth bound", got)
	}
}

func TestCheckHandlesMissingDirectory(t *testing.T) {
	p := New(45 * time.Second)
	if got := p.Check("/no/such/directory"); got != StatusIdle {
		t.Fatalf("Check = %q, want idle for unreadable directory", got)
	}
	if got := p.Check(""); got != StatusIdle {
		t.Fatalf("Check = %q, want idle for empty path", got)
	}
}
