package domain

import (
	"context"
	"fmt"
)

// BatchEmbedder vectorizes multiple texts in a single backend call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies backend availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BatchEmbeddingResult carries embedding vectors and aggregate token usage through the decorator chain.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// ModelInfo describes the embedding model. Stored vectors and query vectors
// are only comparable when both name and dimension match.
type ModelInfo struct {
	Name         string `json:"name"`
	Dimension    int    `json:"dimension"`
	MaxSeqLength int    `json:"max_seq_length"`
}

// Validate checks that the model description is usable.
func (m ModelInfo) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: embedding model name is required", ErrInvalidConfiguration)
	}
	if m.Dimension <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive, got %d", ErrInvalidConfiguration, m.Dimension)
	}
	return nil
}

// CompatibleWith reports whether vectors produced by m can be compared with those of other.
func (m ModelInfo) CompatibleWith(other ModelInfo) bool {
	return m.Name == other.Name && m.Dimension == other.Dimension
}
