// Package library serves lookups and deletions of stored chunks.
package library

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/papershelf/internal/domain"
	"github.com/kailas-cloud/papershelf/internal/domain/search/result"
)

// Stats combines storage statistics with the embedding model description.
type Stats struct {
	domain.StorageStats
	Model domain.ModelInfo
}

// Service wraps the chunk store for API callers.
type Service struct {
	store  Store
	model  ModelDescriber
	logger *zap.Logger
}

// New creates a library service.
func New(store Store, model ModelDescriber, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, model: model, logger: logger}
}

// GetChunk returns a chunk by id. Errors are logged and reported as absence.
func (s *Service) GetChunk(ctx context.Context, id string) (result.Result, bool) {
	r, ok, err := s.store.Get(ctx, id)
	if err != nil {
		s.logger.Warn("Failed to get chunk", zap.String("id", id), zap.Error(err))
		return result.Result{}, false
	}
	return r, ok
}

// DeleteChunk removes a chunk. Errors are logged and reported as false.
func (s *Service) DeleteChunk(ctx context.Context, id string) bool {
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		s.logger.Warn("Failed to delete chunk", zap.String("id", id), zap.Error(err))
		return false
	}
	return ok
}

// DeleteDocument removes every chunk of a document and returns how many were removed.
func (s *Service) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	if strings.TrimSpace(documentID) == "" {
		return 0, fmt.Errorf("%w: document id is required", domain.ErrValidation)
	}
	n, err := s.store.DeleteDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete document %s: %w", documentID, err)
	}
	s.logger.Info("Document deleted", zap.String("document_id", documentID), zap.Int("chunks", n))
	return n, nil
}

// Stats reports storage statistics and the embedding model.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("storage stats: %w", err)
	}
	return Stats{StorageStats: st, Model: s.model.Info()}, nil
}
