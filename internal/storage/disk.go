package storage

import (
	"errors"
	"io/fs"
	"os"
)

// ledgerFiles lists the files SQLite keeps for a WAL-mode database at dbPath.
func ledgerFiles(dbPath string) []string {
	return []string{dbPath, dbPath + "-wal", dbPath + "-shm"}
}

// DatabaseSizeBytes returns the size of a SQLite database including its WAL and
// shared-memory files. Files that do not exist contribute 0; an empty path is 0.
func DatabaseSizeBytes(dbPath string) (int64, error) {
	if dbPath == "" {
		return 0, nil
	}
	var total int64
	for _, p := range ledgerFiles(dbPath) {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
	}
	return total, nil
}
