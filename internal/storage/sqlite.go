package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kensaku/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		content_type TEXT,
		size INTEGER NOT NULL DEFAULT 0,
		fragments INTEGER NOT NULL DEFAULT 0,
		indexed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		message TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);

	CREATE TABLE IF NOT EXISTS fragment_outcomes (
		document_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		fragment_id TEXT,
		source_id TEXT,
		page_number INTEGER,
		chunk_number INTEGER,
		status TEXT NOT NULL,
		detail TEXT,
		slot INTEGER,
		PRIMARY KEY (document_id, position),
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateDocument inserts a ledger entry. CreatedAt is set when zero.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, filename, content_type, size, fragments, indexed, failed, status, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.ContentType, doc.Size, doc.Fragments, doc.Indexed, doc.Failed,
		doc.Status, doc.Message, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	return nil
}

const documentColumns = `id, filename, content_type, size, fragments, indexed, failed, status, message, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var doc models.Document
	var contentType, message sql.NullString
	if err := row.Scan(&doc.ID, &doc.Filename, &contentType, &doc.Size, &doc.Fragments, &doc.Indexed,
		&doc.Failed, &doc.Status, &message, &doc.CreatedAt); err != nil {
		return nil, err
	}
	doc.ContentType = contentType.String
	doc.Message = message.String
	return &doc, nil
}

// GetDocument returns a ledger entry by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns ledger entries newest first.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*models.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CountDocuments returns the total number of ledger entries.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// BatchCreateOutcomes stores per-fragment outcomes for a document in one transaction.
func (s *SQLiteStorage) BatchCreateOutcomes(ctx context.Context, docID string, outcomes []models.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fragment_outcomes (document_id, position, fragment_id, source_id, page_number, chunk_number, status, detail, slot)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range outcomes {
		ref := o.Fragment
		if _, err := stmt.ExecContext(ctx, docID, ref.Index, ref.ID, ref.SourceID,
			nullInt(ref.PageNumber), nullInt(ref.ChunkNumber), o.Status, o.Detail, nullInt(o.Slot)); err != nil {
			return fmt.Errorf("insert outcome %d for %s: %w", ref.Index, docID, err)
		}
	}
	return tx.Commit()
}

// GetOutcomesByDocumentID returns the stored outcomes for a document in submission order.
func (s *SQLiteStorage) GetOutcomesByDocumentID(ctx context.Context, docID string) ([]models.Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, fragment_id, source_id, page_number, chunk_number, status, detail, slot
		 FROM fragment_outcomes WHERE document_id = ? ORDER BY position`,
		docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	outcomes := make([]models.Outcome, 0)
	for rows.Next() {
		var o models.Outcome
		var fragID, sourceID, detail sql.NullString
		var page, chunk, slot sql.NullInt64
		if err := rows.Scan(&o.Fragment.Index, &fragID, &sourceID, &page, &chunk, &o.Status, &detail, &slot); err != nil {
			return nil, err
		}
		o.Fragment.ID = fragID.String
		o.Fragment.SourceID = sourceID.String
		o.Fragment.PageNumber = intPtr(page)
		o.Fragment.ChunkNumber = intPtr(chunk)
		o.Detail = detail.String
		o.Slot = intPtr(slot)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
