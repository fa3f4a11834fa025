package query

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/papershelf/internal/domain"
	domchunk "github.com/kailas-cloud/papershelf/internal/domain/chunk"
	"github.com/kailas-cloud/papershelf/internal/domain/search/filter"
	"github.com/kailas-cloud/papershelf/internal/domain/search/result"
	"github.com/kailas-cloud/papershelf/internal/repository/chunkmem"
)

func newTestPipeline(
	t *testing.T, emb Embedder, retr Retriever, gen Generator, opts ...Option,
) *Pipeline {
	t.Helper()
	synth, err := NewSynthesizer(gen, SynthesizerConfig{})
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}
	p, err := New(emb, retr, synth, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestQuery_Success(t *testing.T) {
	retr := &mockRetriever{results: []result.Result{
		testResult("d_0", "Paris is the capital of France.", 0.05),
	}}
	gen := &mockGenerator{answer: "Paris."}
	p := newTestPipeline(t, &mockEmbedder{}, retr, gen)

	res, err := p.Query(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Query != "What is the capital of France?" || res.Answer != "Paris." {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(res.Documents) != 1 || res.Documents[0].ID() != "d_0" {
		t.Errorf("unexpected documents: %v", res.Documents)
	}
	if retr.lastK != DefaultTopK {
		t.Errorf("expected default top-k %d, got %d", DefaultTopK, retr.lastK)
	}
	if !strings.Contains(gen.prompt, "Document 1:\nParis is the capital of France.") {
		t.Errorf("prompt does not carry the retrieved context:\n%s", gen.prompt)
	}
}

func TestQuery_OptionsReachRetriever(t *testing.T) {
	f, _ := filter.FromMap(map[string]string{"category": "A"})
	retr := &mockRetriever{}
	p := newTestPipeline(t, &mockEmbedder{}, retr, &mockGenerator{answer: "x"}, WithTopK(2), WithFilter(f))

	if _, err := p.Query(context.Background(), "q"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retr.lastK != 2 {
		t.Errorf("expected top-k 2, got %d", retr.lastK)
	}
	if len(retr.lastF.Must()) != 1 || retr.lastF.Must()[0].Key() != "category" {
		t.Errorf("expected category filter, got %v", retr.lastF.Must())
	}
}

func TestQuery_EmptyRetrievalStillGenerates(t *testing.T) {
	gen := &mockGenerator{answer: NoAnswer}
	p := newTestPipeline(t, &mockEmbedder{}, &mockRetriever{}, gen)

	res, err := p.Query(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Documents == nil || len(res.Documents) != 0 {
		t.Errorf("expected empty non-nil documents, got %v", res.Documents)
	}
	if gen.calls != 1 {
		t.Errorf("expected a generation call, got %d", gen.calls)
	}
}

func TestQuery_StageFailures(t *testing.T) {
	tests := []struct {
		name      string
		emb       *mockEmbedder
		retr      *mockRetriever
		gen       *mockGenerator
		wantStage string
		wantErr   error
	}{
		{
			name:      "embed",
			emb:       &mockEmbedder{err: domain.ErrModelUnavailable},
			retr:      &mockRetriever{},
			gen:       &mockGenerator{answer: "x"},
			wantStage: StageEmbed,
			wantErr:   domain.ErrModelUnavailable,
		},
		{
			name:      "embed shape",
			emb:       &mockEmbedder{vecs: [][]float32{{1}, {2}}},
			retr:      &mockRetriever{},
			gen:       &mockGenerator{answer: "x"},
			wantStage: StageEmbed,
			wantErr:   domain.ErrModelUnavailable,
		},
		{
			name:      "retrieve",
			emb:       &mockEmbedder{},
			retr:      &mockRetriever{err: domain.ErrStorage},
			gen:       &mockGenerator{answer: "x"},
			wantStage: StageRetrieve,
			wantErr:   domain.ErrStorage,
		},
		{
			name:      "generate",
			emb:       &mockEmbedder{},
			retr:      &mockRetriever{},
			gen:       &mockGenerator{err: errors.New("500")},
			wantStage: StageGenerate,
			wantErr:   domain.ErrGenerationFailed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPipeline(t, tc.emb, tc.retr, tc.gen)

			res, err := p.Query(context.Background(), "q")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			var se *domain.StageError
			if !errors.As(err, &se) || se.Stage != tc.wantStage {
				t.Errorf("expected stage %q, got %v", tc.wantStage, err)
			}
			if res.Answer != "" || res.Documents != nil {
				t.Errorf("expected zero result on failure, got %+v", res)
			}
		})
	}
}

func TestQuery_FailureStopsPipeline(t *testing.T) {
	retr := &mockRetriever{}
	gen := &mockGenerator{answer: "x"}
	p := newTestPipeline(t, &mockEmbedder{err: domain.ErrModelUnavailable}, retr, gen)

	_, _ = p.Query(context.Background(), "q")
	if retr.called || gen.calls != 0 {
		t.Error("later stages must not run after a failure")
	}
}

func TestQuery_StageTimeouts(t *testing.T) {
	t.Run("embed", func(t *testing.T) {
		p := newTestPipeline(t, &mockEmbedder{wait: true}, &mockRetriever{}, &mockGenerator{answer: "x"},
			WithTimeouts(Timeouts{Embed: 10 * time.Millisecond}))

		_, err := p.Query(context.Background(), "q")
		if !errors.Is(err, domain.ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("generate", func(t *testing.T) {
		p := newTestPipeline(t, &mockEmbedder{}, &mockRetriever{}, &mockGenerator{wait: true},
			WithTimeouts(Timeouts{Generate: 10 * time.Millisecond}))

		_, err := p.Query(context.Background(), "q")
		if !errors.Is(err, domain.ErrTimeout) || !errors.Is(err, domain.ErrGenerationFailed) {
			t.Fatalf("expected ErrTimeout joined with ErrGenerationFailed, got %v", err)
		}
	})
}

func TestQuery_EmptyQuestion(t *testing.T) {
	emb := &mockEmbedder{}
	p := newTestPipeline(t, emb, &mockRetriever{}, &mockGenerator{answer: "x"})

	if _, err := p.Query(context.Background(), "   "); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if emb.calls != 0 {
		t.Error("embedder must not be called for an empty question")
	}
}

func TestNew_Invalid(t *testing.T) {
	synth, _ := NewSynthesizer(&mockGenerator{}, SynthesizerConfig{})

	if _, err := New(&mockEmbedder{}, &mockRetriever{}, synth, WithTopK(0)); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration for top_k=0, got %v", err)
	}
	if _, err := New(nil, &mockRetriever{}, synth); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration for nil embedder, got %v", err)
	}
}

func TestQuery_OverInMemoryIndex(t *testing.T) {
	store, _ := chunkmem.New(2)
	texts := []string{"about cats", "about dogs", "about birds"}
	vectors := [][]float32{{0, 1}, {1, 0}, {0.7, 0.7}}
	chunks := make([]domchunk.Chunk, len(texts))
	for i, text := range texts {
		c, err := domchunk.New("doc", i, len(texts), text, map[string]string{"title": "Pets"})
		if err != nil {
			t.Fatalf("chunk: %v", err)
		}
		chunks[i] = c
	}
	if err := store.Add(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("add: %v", err)
	}

	gen := &mockGenerator{answer: "Dogs."}
	p := newTestPipeline(t, &mockEmbedder{}, store, gen, WithTopK(2))

	res, err := p.Query(context.Background(), "which animal?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(res.Documents))
	}
	if res.Documents[0].Text() != "about dogs" || res.Documents[1].Text() != "about birds" {
		t.Errorf("unexpected ranking: %s, %s", res.Documents[0].Text(), res.Documents[1].Text())
	}
	if !strings.Contains(gen.prompt, "Document 1:\nabout dogs\n\nDocument 2:\nabout birds") {
		t.Errorf("prompt does not follow ranking:\n%s", gen.prompt)
	}
}
