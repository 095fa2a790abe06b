package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/kensaku/internal/models"
)

func TestDatabaseSizeBytes(t *testing.T) {
	dir := t.TempDir()
	writes := func(name string, files map[string]string) string {
		t.Helper()
		db := filepath.Join(dir, name+".db")
		for suffix, content := range files {
			if err := os.WriteFile(db+suffix, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
		}
		return db
	}

	tests := []struct {
		name  string
		files map[string]string
		want  int64
	}{
		{"main file only", map[string]string{"": "1234"}, 4},
		{"with wal", map[string]string{"": "1234", "-wal": "56"}, 6},
		{"with wal and shm", map[string]string{"": "1234", "-wal": "56", "-shm": "789"}, 9},
		{"missing", map[string]string{}, 0},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := writes(fmt.Sprintf("case%d", i), tt.files)
			got, err := DatabaseSizeBytes(db)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d bytes, want %d", got, tt.want)
			}
		})
	}

	if got, err := DatabaseSizeBytes(""); err != nil || got != 0 {
		t.Errorf("empty path: got %d, %v", got, err)
	}
}

func TestDatabaseSizeBytes_liveLedger(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	s, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	before, err := DatabaseSizeBytes(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if before == 0 {
		t.Fatal("freshly created ledger should occupy some bytes")
	}
	doc := &models.Document{ID: "doc-1", Filename: "a.txt", Status: models.FileSuccess, CreatedAt: time.Now()}
	if err := s.CreateDocument(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	after, err := DatabaseSizeBytes(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if after < before {
		t.Errorf("size shrank after write: %d -> %d", before, after)
	}
}
