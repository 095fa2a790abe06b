// Package models defines core data structures for fragments, ingestion reports, queries, and search results.
package models

import "time"

// Fragment is a unit of text that is embedded and stored as one record.
type Fragment struct {
	Text        string `json:"text"`
	SourceID    string `json:"source_id"`
	PageNumber  *int   `json:"page_number,omitempty"`
	ChunkNumber *int   `json:"chunk_number,omitempty"`
}

// FragmentInput is a fragment submitted for ingestion with an optional caller-chosen ID.
type FragmentInput struct {
	ID string `json:"id,omitempty"`
	Fragment
}

// Document is a ledger entry describing one ingested file and how its ingestion went.
type Document struct {
	ID          string    `json:"id" db:"id"`
	Filename    string    `json:"filename" db:"filename"`
	ContentType string    `json:"content_type" db:"content_type"`
	Size        int64     `json:"size" db:"size"`
	Fragments   int       `json:"fragments" db:"fragments"`
	Indexed     int       `json:"indexed" db:"indexed"`
	Failed      int       `json:"failed" db:"failed"`
	Status      string    `json:"status" db:"status"`
	Message     string    `json:"message,omitempty" db:"message"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
