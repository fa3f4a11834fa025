// Package chat keeps question-answer sessions on top of the query pipeline.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/papershelf/internal/domain"
	"github.com/kailas-cloud/papershelf/internal/domain/chat"
	"github.com/kailas-cloud/papershelf/internal/usecase/query"
)

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator overrides session id generation.
func WithIDGenerator(gen func() string) Option { return func(s *Service) { s.newID = gen } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

// Service manages chat sessions.
type Service struct {
	repo   Repository
	answer Answerer
	newID  func() string
	now    func() time.Time
	logger *zap.Logger
}

// New creates a chat service.
func New(repo Repository, answer Answerer, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		answer: answer,
		newID:  uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateSession starts a new session. A blank title becomes chat.DefaultTitle.
func (s *Service) CreateSession(ctx context.Context, title string) (chat.Session, error) {
	now := s.now()
	sess := chat.Session{
		ID:        s.newID(),
		Title:     chat.NormalizeTitle(title),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return chat.Session{}, fmt.Errorf("create session: %w", err)
	}
	s.logger.Info("Chat session created", zap.String("session_id", sess.ID), zap.String("title", sess.Title))
	return sess, nil
}

// ListSessions returns all sessions, newest first.
func (s *Service) ListSessions(ctx context.Context) ([]chat.Session, error) {
	list, err := s.repo.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return list, nil
}

// Session returns one session or domain.ErrNotFound.
func (s *Service) Session(ctx context.Context, id string) (chat.Session, error) {
	if id == "" {
		return chat.Session{}, fmt.Errorf("%w: session id is required", domain.ErrValidation)
	}
	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return chat.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// History returns the exchanges of a session in chronological order.
func (s *Service) History(ctx context.Context, sessionID string) ([]chat.Entry, error) {
	if _, err := s.Session(ctx, sessionID); err != nil {
		return nil, err
	}
	entries, err := s.repo.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return entries, nil
}

// Ask answers question and records the exchange in the session.
// Nothing is recorded when the pipeline fails.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (query.Result, error) {
	if _, err := s.Session(ctx, sessionID); err != nil {
		return query.Result{}, err
	}

	res, err := s.answer.Query(ctx, question)
	if err != nil {
		return query.Result{}, err //nolint:wrapcheck // stage error passes through unchanged
	}

	entry := chat.Entry{
		SessionID: sessionID,
		Query:     res.Query,
		Answer:    res.Answer,
		Sources:   chat.SourcesFromResults(res.Documents),
		CreatedAt: s.now(),
	}
	id, err := s.repo.AppendEntry(ctx, entry)
	if err != nil {
		return query.Result{}, fmt.Errorf("record exchange: %w", err)
	}

	s.logger.Debug("Chat exchange recorded",
		zap.String("session_id", sessionID),
		zap.Int64("entry_id", id),
		zap.Int("sources", len(entry.Sources)),
	)
	return res, nil
}
