// Package pathutil provides working-directory matching helpers used to
// resolve hook events to instances.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// Normalize cleans a path and expands a leading "~" against the current
// user's home directory.
func Normalize(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return filepath.Clean(path)
}

// BestMatch picks the candidate whose working directory best matches
// dir: exact match first, then a home-relative match, then the longest
// prefix match. Returns the index of the winner, or -1 if nothing
// matches.
func BestMatch(dir string, candidates []string) int {
	dir = Normalize(dir)
	if dir == "" {
		return -1
	}

	// Exact match
	for i, c := range candidates {
		if Normalize(c) == dir {
			return i
		}
	}

	// Home-relative match: the same path expressed with and without the
	// home directory prefix (hooks on remote machines report "~/x").
	if home, err := os.UserHomeDir(); err == nil {
		rel, relErr := filepath.Rel(home, dir)
		for i, c := range candidates {
			nc := Normalize(c)
			if relErr == nil && !strings.HasPrefix(rel, "..") && nc == filepath.Clean(rel) {
				return i
			}
			if ncRel, err := filepath.Rel(home, nc); err == nil && !strings.HasPrefix(ncRel, "..") {
				if filepath.Clean(ncRel) == dir || filepath.Join(home, dir) == nc {
					return i
				}
			}
		}
	}

	// Longest prefix match: dir is inside a candidate's tree or vice versa.
	best := -1
	bestLen := 0
	for i, c := range candidates {
		nc := Normalize(c)
		if nc == "" {
			continue
		}
		var prefix string
		switch {
		case strings.HasPrefix(dir+string(filepath.Separator), nc+string(filepath.Separator)):
			prefix = nc
		case strings.HasPrefix(nc+string(filepath.Separator), dir+string(filepath.Separator)):
			prefix = dir
		default:
			continue
		}
		if len(prefix) > bestLen {
			best = i
			bestLen = len(prefix)
		}
	}
	return best
}
