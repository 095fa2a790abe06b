// Package embedding turns text into fixed-length vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrCollaboratorFailure marks an error raised by an embedding provider rather than by the caller's input.
var ErrCollaboratorFailure = errors.New("embedding provider failed")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// ProviderError wraps err as a collaborator failure unless it already is one.
func ProviderError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCollaboratorFailure) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrCollaboratorFailure, err)
}
