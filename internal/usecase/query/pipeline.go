// Package query answers questions over the ingested papers: embed the
// question, retrieve the nearest chunks, and generate a grounded answer.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/papershelf/internal/domain"
	"github.com/kailas-cloud/papershelf/internal/domain/search/filter"
	"github.com/kailas-cloud/papershelf/internal/domain/search/result"
	"github.com/kailas-cloud/papershelf/internal/metrics"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 5

// Stage names used in errors and metrics.
const (
	StageEmbed    = "embed"
	StageRetrieve = "retrieve"
	StageGenerate = "generate"
)

// Result is the answer to a question with the chunks it was grounded on.
type Result struct {
	Query     string
	Answer    string
	Documents []result.Result
}

// Timeouts bound each external call. Zero means no bound beyond the caller's context.
type Timeouts struct {
	Embed    time.Duration
	Retrieve time.Duration
	Generate time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTopK sets the number of retrieved chunks.
func WithTopK(k int) Option { return func(p *Pipeline) { p.topK = k } }

// WithFilter restricts retrieval to chunks matching f.
func WithFilter(f filter.Expression) Option { return func(p *Pipeline) { p.filter = f } }

// WithTimeouts sets per-stage deadlines.
func WithTimeouts(t Timeouts) Option { return func(p *Pipeline) { p.timeouts = t } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// Pipeline is immutable after New and safe for concurrent use.
type Pipeline struct {
	embed    Embedder
	retr     Retriever
	synth    Synthesizer
	topK     int
	filter   filter.Expression
	timeouts Timeouts
	logger   *zap.Logger
}

// New creates a query pipeline.
func New(embed Embedder, retr Retriever, synth Synthesizer, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		embed:  embed,
		retr:   retr,
		synth:  synth,
		topK:   DefaultTopK,
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	if embed == nil || retr == nil || synth == nil {
		return nil, fmt.Errorf("%w: embedder, retriever and synthesizer are required", domain.ErrInvalidConfiguration)
	}
	if p.topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidConfiguration, p.topK)
	}
	return p, nil
}

// TopK returns the configured number of retrieved chunks.
func (p *Pipeline) TopK() int { return p.topK }

// Pipeline states. Transitions run retrieving -> generating -> done,
// with failed reachable from any non-terminal state.
type (
	state interface{ isState() }

	retrieving struct{ question string }
	generating struct {
		question string
		docs     []result.Result
	}
	done   struct{ result Result }
	failed struct{ err error }
)

func (retrieving) isState() {}
func (generating) isState() {}
func (done) isState()       {}
func (failed) isState()     {}

// Query answers question. On failure no partial result is returned.
func (p *Pipeline) Query(ctx context.Context, question string) (Result, error) {
	if strings.TrimSpace(question) == "" {
		return Result{}, fmt.Errorf("%w: query must not be empty", domain.ErrValidation)
	}

	var st state = retrieving{question: question}
	for {
		switch s := st.(type) {
		case retrieving:
			st = p.retrieve(ctx, s)
		case generating:
			st = p.generate(ctx, s)
		case done:
			return s.result, nil
		case failed:
			return Result{}, s.err
		default:
			return Result{}, fmt.Errorf("unexpected pipeline state %T", st)
		}
	}
}

func (p *Pipeline) retrieve(ctx context.Context, s retrieving) state {
	vecs, err := runStage(ctx, StageEmbed, p.timeouts.Embed, func(ctx context.Context) ([][]float32, error) {
		return p.embed.Embed(ctx, s.question)
	})
	if err != nil {
		return p.fail(StageEmbed, err)
	}
	if len(vecs) != 1 {
		return p.fail(StageEmbed, fmt.Errorf("%w: expected 1 query vector, got %d", domain.ErrModelUnavailable, len(vecs)))
	}

	docs, err := runStage(ctx, StageRetrieve, p.timeouts.Retrieve, func(ctx context.Context) ([]result.Result, error) {
		return p.retr.Query(ctx, vecs[0], p.topK, p.filter)
	})
	if err != nil {
		return p.fail(StageRetrieve, err)
	}
	return generating{question: s.question, docs: docs}
}

func (p *Pipeline) generate(ctx context.Context, s generating) state {
	answer, err := runStage(ctx, StageGenerate, p.timeouts.Generate, func(ctx context.Context) (string, error) {
		return p.synth.Synthesize(ctx, s.question, s.docs)
	})
	if err != nil {
		return p.fail(StageGenerate, err)
	}
	if s.docs == nil {
		s.docs = []result.Result{}
	}
	return done{result: Result{Query: s.question, Answer: answer, Documents: s.docs}}
}

func (p *Pipeline) fail(stage string, err error) state {
	p.logger.Warn("Query pipeline stage failed",
		zap.String("stage", stage),
		zap.Error(err),
	)
	return failed{err: domain.NewStageError(stage, err)}
}

// runStage calls fn under its own deadline and records the stage duration.
// A missed deadline is reported as domain.ErrTimeout on top of the stage error.
func runStage[T any](ctx context.Context, stage string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	v, err := fn(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			status = "timeout"
			if !errors.Is(err, domain.ErrTimeout) {
				err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
			}
		}
	}
	metrics.PipelineStageDuration.WithLabelValues(stage, status).Observe(time.Since(start).Seconds())
	return v, err
}
