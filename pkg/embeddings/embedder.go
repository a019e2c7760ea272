// Package embeddings defines the vectorizer the semantic layer depends on.
// The dependency is optional: every semantic operation has a deterministic
// fallback when no embedder is configured or the provider is unreachable.
package embeddings

import (
	"context"
	"errors"
)

// ErrEmbedding wraps any failure talking to an embedding provider. Callers
// match it with errors.Is to trigger fallback behavior.
var ErrEmbedding = errors.New("embedding error")

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
