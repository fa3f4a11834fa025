// Package embedding turns texts into fixed-dimension vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/papershelf/internal/domain"
)

// Embedder checks backend output against the configured model.
// Safe for concurrent use when the backend is.
type Embedder struct {
	backend domain.BatchEmbedder
	info    domain.ModelInfo
}

// New creates an embedder over backend for the model described by info.
func New(backend domain.BatchEmbedder, info domain.ModelInfo) (*Embedder, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: embedding backend is required", domain.ErrInvalidConfiguration)
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return &Embedder{backend: backend, info: info}, nil
}

// Embed returns one vector per text, in input order.
// Backend failures and malformed output are reported as domain.ErrModelUnavailable.
func (e *Embedder) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	res, err := e.backend.BatchEmbed(ctx, texts)
	if err != nil {
		if errors.Is(err, domain.ErrModelUnavailable) {
			return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
		}
		return nil, fmt.Errorf("%w: embed %d texts: %w", domain.ErrModelUnavailable, len(texts), err)
	}

	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: backend returned %d vectors for %d texts",
			domain.ErrModelUnavailable, len(res.Embeddings), len(texts))
	}
	for i, v := range res.Embeddings {
		if len(v) != e.info.Dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, model %s expects %d",
				domain.ErrModelUnavailable, i, len(v), e.info.Name, e.info.Dimension)
		}
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
	return res.Embeddings, nil
}

// Info describes the model behind the embedder.
func (e *Embedder) Info() domain.ModelInfo { return e.info }

// HealthCheck delegates to the backend when it supports health checks.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	hc, ok := e.backend.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
	}
	return nil
}
