package models

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery is returned by Validate for malformed search queries.
var ErrInvalidQuery = errors.New("invalid query")

// SearchQuery represents a similarity search request.
type SearchQuery struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// Validate rejects empty query text and negative TopK. A zero TopK takes defaultTopK
// and anything above maxTopK is capped.
func (q *SearchQuery) Validate(defaultTopK, maxTopK int) error {
	if q.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	if q.TopK < 0 {
		return fmt.Errorf("%w: top_k must not be negative, got %d", ErrInvalidQuery, q.TopK)
	}
	if q.TopK == 0 {
		q.TopK = defaultTopK
	}
	if maxTopK > 0 && q.TopK > maxTopK {
		q.TopK = maxTopK
	}
	return nil
}
