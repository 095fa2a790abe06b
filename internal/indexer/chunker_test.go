package indexer

import (
	"testing"

	"github.com/hyperjump/kensaku/internal/extract"
)

func TestChunker_Chunk(t *testing.T) {
	c := NewChunker(3, 1)
	chunks := c.Chunk("one two three four five six seven")
	want := []string{"one two three", "three four five", "five six seven"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %v", len(want), len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestChunker_ChunkEmpty(t *testing.T) {
	c := NewChunker(5, 1)
	chunks := c.Chunk("   \n\t  ")
	if chunks != nil {
		t.Errorf("empty text should return nil, got %v", chunks)
	}
}

func TestChunker_InvalidSettings(t *testing.T) {
	c := NewChunker(2, 5)
	chunks := c.Chunk("a b c d")
	if len(chunks) != 2 {
		t.Errorf("overlap >= size should disable overlap, got %v", chunks)
	}
}

func TestChunker_ChunkPages(t *testing.T) {
	c := NewChunker(2, 0)
	pages := []extract.Page{
		{Number: 1, Text: "alpha beta gamma"},
		{Number: 2, Text: "delta"},
	}
	frags := c.ChunkPages("report.pdf", pages)
	if len(frags) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(frags))
	}
	wantPage := []int{1, 1, 2}
	wantChunk := []int{1, 2, 1}
	seen := make(map[string]bool)
	for i, f := range frags {
		if f.SourceID != "report.pdf" {
			t.Errorf("fragment %d SourceID=%s", i, f.SourceID)
		}
		if f.PageNumber == nil || *f.PageNumber != wantPage[i] {
			t.Errorf("fragment %d page = %v, want %d", i, f.PageNumber, wantPage[i])
		}
		if f.ChunkNumber == nil || *f.ChunkNumber != wantChunk[i] {
			t.Errorf("fragment %d chunk = %v, want %d", i, f.ChunkNumber, wantChunk[i])
		}
		if f.ID == "" || seen[f.ID] {
			t.Errorf("fragment %d ID %q should be set and unique", i, f.ID)
		}
		seen[f.ID] = true
	}

	again := c.ChunkPages("report.pdf", pages)
	if again[0].ID != frags[0].ID {
		t.Error("fragment IDs should be deterministic")
	}
}

func TestChunker_ChunkPagesUnpaged(t *testing.T) {
	c := NewChunker(10, 0)
	frags := c.ChunkPages("notes.txt", []extract.Page{{Number: 0, Text: "just text"}})
	if len(frags) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(frags))
	}
	if frags[0].PageNumber != nil {
		t.Errorf("unpaged source should have no page number, got %d", *frags[0].PageNumber)
	}
	if frags[0].Text != "just text" {
		t.Errorf("Text=%q", frags[0].Text)
	}
}

func TestPreprocess(t *testing.T) {
	if Preprocess("  a  b  ") != "a b" {
		t.Error("expected trimmed and collapsed spaces")
	}
	if Preprocess("\n\t ") != "" {
		t.Error("whitespace-only text should preprocess to empty")
	}
}
