// Package fsprobe implements the local activity probe: a file-mtime
// heuristic over an instance's working directory. An agent that is
// "thinking" without tool calls still touches its session files, so
// recent mtimes are independent evidence of activity.
package fsprobe

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Probe statuses.
const (
	StatusWorking = "working"
	StatusIdle    = "idle"
)

// maxDepth bounds the directory walk; deep vendor trees are not worth
// scanning for a liveness heuristic.
const maxDepth = 3

// maxEntries caps how many directory entries are examined per probe.
const maxEntries = 2000

// Prober checks a working directory for recent filesystem activity.
type Prober struct {
	window time.Duration
	now    func() time.Time
}

// New creates a prober that treats files modified within window as
// evidence of ongoing activity.
func New(window time.Duration) *Prober {
	return &Prober{window: window, now: time.Now}
}

// Check reports "working" if any file under workingDirectory was
// modified within the probe window, "idle" otherwise. Unreadable
// directories count as idle; the probe is advisory, not authoritative.
func (p *Prober) Check(workingDirectory string) string {
	root := strings.TrimSpace(workingDirectory)
	if root == "" {
		return StatusIdle
	}

	cutoff := p.now().Add(-p.window)
	seen := 0
	working := false

	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return filepath.SkipAll
			}
			return nil
		}
		seen++
		if seen > maxEntries || working {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if depth(root, path) >= maxDepth {
				return filepath.SkipDir
			}
			// Dotdirs (.git and friends) churn constantly without
			// indicating agent activity.
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(cutoff) {
			working = true
			return filepath.SkipAll
		}
		return nil
	})

	if working {
		return StatusWorking
	}
	return StatusIdle
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
