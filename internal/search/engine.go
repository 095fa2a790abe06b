// Package search answers similarity queries against the vector store.
package search

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/vector"
	"github.com/hyperjump/kensaku/internal/vectorstore"
)

const (
	defaultTopK = 5
	maxTopK     = 100
)

// VectorStore is the part of vectorstore.Store the engine reads from.
type VectorStore interface {
	Search(query []float32, topK int) ([]vectorstore.Hit, error)
	Count() int
	Dimensions() int
	Metric() vector.Metric
}

// Engine embeds query text and returns the nearest stored fragments.
type Engine struct {
	store    VectorStore
	embedder embedding.Embedder
	config   *config.SearchConfig
}

// NewEngine creates a search engine with the given dependencies.
// A nil cfg uses a default top-k of 5 capped at 100.
func NewEngine(store VectorStore, embedder embedding.Embedder, cfg *config.SearchConfig) *Engine {
	if cfg == nil {
		cfg = &config.SearchConfig{DefaultTopK: defaultTopK, MaxTopK: maxTopK}
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		config:   cfg,
	}
}

// Search embeds the query once and returns up to TopK results by ascending squared distance.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := ProcessQuery(query, e.config); err != nil {
		return nil, err
	}

	queryEmbedding, err := e.embedder.Embed(ctx, query.Query)
	if err != nil {
		return nil, embedding.ProviderError("embed query", err)
	}
	if len(queryEmbedding) != e.store.Dimensions() {
		return nil, embedding.ProviderError("embed query",
			&vector.ErrDimensionMismatch{Expected: e.store.Dimensions(), Actual: len(queryEmbedding)})
	}
	if i := vector.NonFinite(queryEmbedding); i >= 0 {
		return nil, embedding.ProviderError("embed query", fmt.Errorf("component %d is not finite", i))
	}
	hits, err := e.store.Search(queryEmbedding, query.TopK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	response := &models.SearchResponse{
		Results: make([]*models.SearchResult, 0, len(hits)),
		Total:   len(hits),
		Query:   query.Query,
	}
	for i, hit := range hits {
		response.Results = append(response.Results, &models.SearchResult{
			Rank:        i + 1,
			ID:          hit.ID,
			Text:        hit.Fragment.Text,
			SourceID:    hit.Fragment.SourceID,
			PageNumber:  hit.Fragment.PageNumber,
			ChunkNumber: hit.Fragment.ChunkNumber,
			Score:       FormatScore(hit.Score),
		})
	}
	response.QueryTime = time.Since(startTime).Milliseconds()
	return response, nil
}

// StoreSize returns the number of stored fragments.
func (e *Engine) StoreSize() int {
	return e.store.Count()
}

// Dimensions returns the vector length queries are embedded to.
func (e *Engine) Dimensions() int {
	return e.store.Dimensions()
}

// Metric returns the distance function scores are computed with.
func (e *Engine) Metric() vector.Metric {
	return e.store.Metric()
}

// FormatScore renders a distance as the shortest decimal string that parses back to the same value.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'g', -1, 64)
}
