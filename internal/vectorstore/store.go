// Package vectorstore pairs the similarity index with the record store behind a single lock,
// so that every indexed vector has exactly one record at the same slot.
package vectorstore

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/records"
	"github.com/hyperjump/kensaku/internal/vector"
)

// Hit is a search result resolved to its record.
type Hit struct {
	Slot     int
	ID       string
	Fragment models.Fragment
	Score    float64
}

// Store is an in-memory vector store. Inserts are exclusive; searches run concurrently.
type Store struct {
	mu      sync.RWMutex
	index   *vector.FlatIndex
	records *records.Store
	logger  *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for inconsistency reports.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New creates an empty store for embeddings of the given dimension.
func New(dimensions int, opts ...Option) (*Store, error) {
	idx, err := vector.NewFlatIndex(dimensions)
	if err != nil {
		return nil, err
	}
	s := &Store{
		index:   idx,
		records: records.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dimensions returns the embedding length the store accepts.
func (s *Store) Dimensions() int {
	return s.index.Dimensions()
}

// Metric returns the distance function used for scores.
func (s *Store) Metric() vector.Metric {
	return s.index.Metric()
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// Insert stores embedding and fragment under id and returns the assigned slot.
// On any error the store is left unchanged.
func (s *Store) Insert(id string, embedding []float32, fragment models.Fragment) (int, error) {
	if len(embedding) != s.index.Dimensions() {
		return 0, &vector.ErrDimensionMismatch{Expected: s.index.Dimensions(), Actual: len(embedding)}
	}
	if id == "" {
		return 0, fmt.Errorf("%w: id cannot be empty", ErrInvalidArgument)
	}
	if i := vector.NonFinite(embedding); i >= 0 {
		return 0, fmt.Errorf("%w: embedding component %d is not finite", ErrInvalidArgument, i)
	}

	slot, err := s.insertLocked(id, embedding, fragment)
	if errors.Is(err, ErrInternalInconsistency) && s.logger != nil {
		s.logger.Error("insert rolled back", zap.String("id", id), zap.Error(err))
	}
	return slot, err
}

func (s *Store) insertLocked(id string, embedding []float32, fragment models.Fragment) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records.ContainsID(id) {
		existing, _ := s.records.SlotOf(id)
		return 0, fmt.Errorf("%w: %q already stored at slot %d", ErrDuplicateID, id, existing)
	}
	slot, err := s.index.Insert(embedding)
	if err != nil {
		return 0, err
	}
	if err := s.records.Put(slot, records.Record{ID: id, Fragment: fragment}); err != nil {
		s.index.Truncate(slot)
		return 0, fmt.Errorf("%w: %w", ErrInternalInconsistency, err)
	}
	return slot, nil
}

// Search returns the topK records nearest to query, nearest first, with squared
// Euclidean distance as the score. An empty store yields an empty result.
func (s *Store) Search(query []float32, topK int) ([]Hit, error) {
	if len(query) != s.index.Dimensions() {
		return nil, &vector.ErrDimensionMismatch{Expected: s.index.Dimensions(), Actual: len(query)}
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidArgument, topK)
	}
	if i := vector.NonFinite(query); i >= 0 {
		return nil, fmt.Errorf("%w: query component %d is not finite", ErrInvalidArgument, i)
	}

	hits, err := s.searchLocked(query, topK)
	if errors.Is(err, ErrInternalInconsistency) && s.logger != nil {
		s.logger.Error("search found unresolved slot", zap.Int("top_k", topK), zap.Error(err))
	}
	return hits, err
}

func (s *Store) searchLocked(query []float32, topK int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	neighbors, err := s.index.Search(query, topK)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(neighbors))
	for _, n := range neighbors {
		rec, err := s.records.Get(n.Slot)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInternalInconsistency, err)
		}
		hits = append(hits, Hit{
			Slot:     n.Slot,
			ID:       rec.ID,
			Fragment: rec.Fragment,
			Score:    n.Distance,
		})
	}
	return hits, nil
}
