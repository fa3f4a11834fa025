package query

import (
	"context"

	"github.com/kailas-cloud/papershelf/internal/domain/search/filter"
	"github.com/kailas-cloud/papershelf/internal/domain/search/result"
)

// Embedder vectorizes texts, one vector per input in order.
type Embedder interface {
	Embed(ctx context.Context, texts ...string) ([][]float32, error)
}

// Retriever returns the k stored chunks nearest to a vector among those matching f.
type Retriever interface {
	Query(ctx context.Context, vector []float32, k int, f filter.Expression) ([]result.Result, error)
}

// Generator produces text from a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt, model string, temperature float32, maxTokens int) (string, error)
}

// Synthesizer answers a question from retrieved context.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, docs []result.Result) (string, error)
}
