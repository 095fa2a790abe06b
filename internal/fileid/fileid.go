// Package fileid derives deterministic identifiers for ingested content.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
)

const fragmentPrefix = "frag:"

// SourceID returns the source identifier recorded for a file on disk: its cleaned absolute path.
func SourceID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// FragmentID returns a stable ID for a fragment. The same source, position and text always
// yield the same ID, so ingesting identical content twice is detected as a duplicate.
// page and chunk are zero when absent.
func FragmentID(sourceID string, page, chunk int, text string) string {
	h := sha256.New()
	h.Write([]byte(sourceID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(page)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(chunk)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return fragmentPrefix + hex.EncodeToString(h.Sum(nil))
}
