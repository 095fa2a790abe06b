package fileid

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestFragmentID_Deterministic(t *testing.T) {
	id1 := FragmentID("report.pdf", 1, 2, "hello")
	id2 := FragmentID("report.pdf", 1, 2, "hello")
	if id1 != id2 {
		t.Errorf("same input should give same ID: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, fragmentPrefix) {
		t.Errorf("ID should have prefix %q: got %q", fragmentPrefix, id1)
	}
}

func TestFragmentID_Distinct(t *testing.T) {
	base := FragmentID("a.txt", 1, 1, "text")
	tests := []struct {
		name string
		id   string
	}{
		{"source", FragmentID("b.txt", 1, 1, "text")},
		{"page", FragmentID("a.txt", 2, 1, "text")},
		{"chunk", FragmentID("a.txt", 1, 2, "text")},
		{"text", FragmentID("a.txt", 1, 1, "other")},
		// Field boundaries must not be ambiguous.
		{"boundary", FragmentID("a.txt1", 1, 1, "text")},
	}
	for _, tt := range tests {
		if tt.id == base {
			t.Errorf("%s change should change the ID", tt.name)
		}
	}
}

func TestSourceID(t *testing.T) {
	abs, _ := filepath.Abs("a/./b.txt")
	if got := SourceID("a/./b.txt"); got != abs {
		t.Errorf("SourceID = %q, want %q", got, abs)
	}
	if SourceID("/foo/bar/") != "/foo/bar" {
		t.Errorf("trailing slash not cleaned: %q", SourceID("/foo/bar/"))
	}
}
