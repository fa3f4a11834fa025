// Package ingest turns a PDF into stored, embedded chunks.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/papershelf/internal/domain"
	domchunk "github.com/kailas-cloud/papershelf/internal/domain/chunk"
	"github.com/kailas-cloud/papershelf/internal/metrics"
)

// Chunking defaults, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// StatusSuccess is the only status a returned Report carries.
const StatusSuccess = "success"

// Report describes an ingested document.
type Report struct {
	DocumentID string
	Title      string
	Author     string
	PageCount  int
	Status     string
	ChunkIDs   []string
}

// Option configures a Service.
type Option func(*Service)

// WithChunking sets the chunk window.
func WithChunking(size, overlap int) Option {
	return func(s *Service) { s.size, s.overlap = size, overlap }
}

// WithIDGenerator replaces the document id source.
func WithIDGenerator(fn func() string) Option { return func(s *Service) { s.newID = fn } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

// Service ingests documents. Immutable after New and safe for concurrent use.
type Service struct {
	parser  Parser
	embed   Embedder
	store   Store
	size    int
	overlap int
	newID   func() string
	logger  *zap.Logger
}

// New creates an ingestion service.
func New(parser Parser, embed Embedder, store Store, opts ...Option) (*Service, error) {
	s := &Service{
		parser:  parser,
		embed:   embed,
		store:   store,
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
		newID:   uuid.NewString,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	if parser == nil || embed == nil || store == nil {
		return nil, fmt.Errorf("%w: parser, embedder and store are required", domain.ErrInvalidConfiguration)
	}
	if err := domchunk.ValidateWindow(s.size, s.overlap); err != nil {
		return nil, err
	}
	return s, nil
}

// Ingest parses, chunks, embeds and stores the PDF at path.
// Nothing is written unless every chunk has a vector. A failed write is not rolled back.
func (s *Service) Ingest(ctx context.Context, path string) (rep Report, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.IngestedDocumentsTotal.WithLabelValues(status).Inc()
	}()

	meta, err := s.parser.Extract(ctx, path)
	if err != nil {
		return Report{}, fmt.Errorf("extract metadata: %w", err)
	}

	text, err := s.parser.ExtractText(ctx, path)
	if err != nil {
		return Report{}, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return Report{}, fmt.Errorf("%w: no extractable text in %s", domain.ErrValidation, path)
	}

	parts, err := domchunk.Split(text, s.size, s.overlap)
	if err != nil {
		return Report{}, fmt.Errorf("split text: %w", err)
	}

	vectors, err := s.embed.Embed(ctx, parts...)
	if err != nil {
		return Report{}, fmt.Errorf("embed %d chunks: %w", len(parts), err)
	}

	docID := s.newID()
	attrs := meta.Attributes()

	chunks := make([]domchunk.Chunk, 0, len(parts))
	ids := make([]string, 0, len(parts))
	for i, part := range parts {
		c, err := domchunk.New(docID, i, len(parts), part, attrs)
		if err != nil {
			return Report{}, fmt.Errorf("build chunk %d: %w", i, err)
		}
		chunks = append(chunks, c)
		ids = append(ids, c.ID())
	}

	if len(ids) != len(vectors) || len(ids) != len(parts) {
		return Report{}, fmt.Errorf("%w: %d ids, %d vectors, %d texts",
			domain.ErrValidation, len(ids), len(vectors), len(parts))
	}

	if err := s.store.Add(ctx, chunks, vectors); err != nil {
		return Report{}, fmt.Errorf("store %d chunks: %w", len(chunks), err)
	}
	metrics.IngestedChunksTotal.Add(float64(len(chunks)))

	s.logger.Info("Document ingested",
		zap.String("document_id", docID),
		zap.String("path", path),
		zap.String("title", meta.Title),
		zap.Int("pages", meta.PageCount),
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", time.Since(start)),
	)

	return Report{
		DocumentID: docID,
		Title:      meta.Title,
		Author:     meta.Author,
		PageCount:  meta.PageCount,
		Status:     StatusSuccess,
		ChunkIDs:   ids,
	}, nil
}
