package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalize(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir: %v", err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"/work/alpha/", "/work/alpha"},
		{"/work//alpha/./beta", "/work/alpha/beta"},
		{"  /work/alpha  ", "/work/alpha"},
		{"~", home},
		{"~/projects/alpha", filepath.Join(home, "projects", "alpha")},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBestMatchExact(t *testing.T) {
	candidates := []string{"/work/alpha", "/work/beta", "/work/gamma"}

	if got := BestMatch("/work/beta", candidates); got != 1 {
		t.Fatalf("BestMatch = %d, want 1", got)
	}
	if got := BestMatch("/work/beta/", candidates); got != 1 {
		t.Fatalf("BestMatch with trailing slash = %d, want 1", got)
	}
}

func TestBestMatchHomeRelative(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir: %v", err)
	}

	// A hook reports the tilde form while the instance stores the
	// absolute form.
	candidates := []string{"/work/alpha", filepath.Join(home, "projects", "beta")}
	if got := BestMatch("~/projects/beta", candidates); got != 1 {
		t.Fatalf("BestMatch = %d, want 1", got)
	}
}

func TestBestMatchLongestPrefix(t *testing.T) {
	candidates := []string{"/work", "/work/alpha", "/other"}

	// A subdirectory resolves to the deepest enclosing candidate.
	if got := BestMatch("/work/alpha/src/pkg", candidates); got != 1 {
		t.Fatalf("BestMatch = %d, want 1 (deepest prefix)", got)
	}
}

func TestBestMatchNone(t *testing.T) {
	candidates := []string{"/work/alpha", "/work/beta"}

	if got := BestMatch("/elsewhere", candidates); got != -1 {
		t.Fatalf("BestMatch = %d, want -1", got)
	}
	if got := BestMatch("", candidates); got != -1 {
		t.Fatalf("BestMatch of empty dir = %d, want -1", got)
	}
	if got := BestMatch("/work/alpha", nil); got != -1 {
		t.Fatalf("BestMatch with no candidates = %d, want -1", got)
	}
}
