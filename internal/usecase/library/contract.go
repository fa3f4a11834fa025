package library

import (
	"context"

	"github.com/kailas-cloud/papershelf/internal/domain"
	"github.com/kailas-cloud/papershelf/internal/domain/search/result"
)

// Store reads and deletes stored chunks.
type Store interface {
	Get(ctx context.Context, id string) (result.Result, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteDocument(ctx context.Context, documentID string) (int, error)
	Stats(ctx context.Context) (domain.StorageStats, error)
}

// ModelDescriber reports the embedding model in use.
type ModelDescriber interface {
	Info() domain.ModelInfo
}
