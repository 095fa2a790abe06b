package search

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/vectorstore"
)

// ProcessQuery trims the query text, validates it and applies the configured top-k defaults.
// Validation failures match vectorstore.ErrInvalidArgument.
func ProcessQuery(query *models.SearchQuery, cfg *config.SearchConfig) error {
	if query == nil {
		return fmt.Errorf("%w: %w: missing query", vectorstore.ErrInvalidArgument, models.ErrInvalidQuery)
	}
	query.Query = strings.TrimSpace(query.Query)
	if err := query.Validate(cfg.DefaultTopK, cfg.MaxTopK); err != nil {
		return fmt.Errorf("%w: %w", vectorstore.ErrInvalidArgument, err)
	}
	return nil
}
