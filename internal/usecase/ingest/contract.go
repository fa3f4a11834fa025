package ingest

import (
	"context"

	domchunk "github.com/kailas-cloud/papershelf/internal/domain/chunk"
	"github.com/kailas-cloud/papershelf/internal/domain/paper"
)

// Parser reads a source document.
type Parser interface {
	Extract(ctx context.Context, path string) (paper.Metadata, error)
	ExtractText(ctx context.Context, path string) (string, error)
}

// Embedder vectorizes texts, one vector per input in order.
type Embedder interface {
	Embed(ctx context.Context, texts ...string) ([][]float32, error)
}

// Store persists chunks with their vectors in one batch.
type Store interface {
	Add(ctx context.Context, chunks []domchunk.Chunk, vectors [][]float32) error
}
