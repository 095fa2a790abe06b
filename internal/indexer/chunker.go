// Package indexer turns documents into fragments and ingests them into the vector store.
package indexer

import (
	"strings"

	"github.com/hyperjump/kensaku/internal/extract"
	"github.com/hyperjump/kensaku/internal/fileid"
	"github.com/hyperjump/kensaku/internal/models"
)

// Chunker splits page text into overlapping word windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 200
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Chunk splits text into word windows. Whitespace inside a window is collapsed to single spaces.
func (c *Chunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	chunks := make([]string, 0, len(words)/step+1)
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end >= len(words) {
			break
		}
	}
	return chunks
}

// ChunkPages produces fragments for every page of a source. Chunk numbers restart at 1 on
// each page; pages numbered zero yield fragments without a page number. Fragment IDs are
// derived from source, position and text.
func (c *Chunker) ChunkPages(sourceID string, pages []extract.Page) []models.FragmentInput {
	var out []models.FragmentInput
	for _, page := range pages {
		for i, text := range c.Chunk(page.Text) {
			chunk := i + 1
			frag := models.Fragment{
				Text:        text,
				SourceID:    sourceID,
				ChunkNumber: models.IntPtr(chunk),
			}
			if page.Number > 0 {
				frag.PageNumber = models.IntPtr(page.Number)
			}
			out = append(out, models.FragmentInput{
				ID:       fileid.FragmentID(sourceID, page.Number, chunk, text),
				Fragment: frag,
			})
		}
	}
	return out
}
