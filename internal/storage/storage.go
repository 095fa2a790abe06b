// Package storage persists the ingestion ledger: which files were ingested and how each fragment fared.
// Vectors and fragment text live only in the in-memory vector store.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kensaku/internal/models"
)

// ErrNotFound is returned when a ledger entry does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines ingestion ledger operations.
type Storage interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	CountDocuments(ctx context.Context) (int64, error)

	BatchCreateOutcomes(ctx context.Context, docID string, outcomes []models.Outcome) error
	GetOutcomesByDocumentID(ctx context.Context, docID string) ([]models.Outcome, error)

	Close() error
}
