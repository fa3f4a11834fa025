package query

import (
	"context"
	"os"
	"testing"

	"github.com/kailas-cloud/papershelf/internal/domain/chunk"
	"github.com/kailas-cloud/papershelf/internal/domain/search/filter"
	"github.com/kailas-cloud/papershelf/internal/domain/search/result"
	"github.com/kailas-cloud/papershelf/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

// --- Mocks ---

type mockEmbedder struct {
	vecs  [][]float32
	err   error
	wait  bool
	calls int
}

func (m *mockEmbedder) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	m.calls++
	if m.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.vecs != nil {
		return m.vecs, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type mockRetriever struct {
	results []result.Result
	err     error
	lastK   int
	lastF   filter.Expression
	called  bool
}

func (m *mockRetriever) Query(_ context.Context, _ []float32, k int, f filter.Expression) ([]result.Result, error) {
	m.called = true
	m.lastK = k
	m.lastF = f
	return m.results, m.err
}

type mockGenerator struct {
	answer      string
	err         error
	wait        bool
	prompt      string
	model       string
	temperature float32
	maxTokens   int
	calls       int
}

func (m *mockGenerator) Complete(
	ctx context.Context, prompt, model string, temperature float32, maxTokens int,
) (string, error) {
	m.calls++
	m.prompt = prompt
	m.model = model
	m.temperature = temperature
	m.maxTokens = maxTokens
	if m.wait {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.answer, m.err
}

func testResult(id, text string, distance float64) result.Result {
	return result.New(id, text, chunk.Metadata{DocumentID: "doc", TotalChunks: 1}, distance)
}
