package chat

import (
	"context"

	"github.com/kailas-cloud/papershelf/internal/domain/chat"
	"github.com/kailas-cloud/papershelf/internal/usecase/query"
)

// Repository persists sessions and their exchanges.
type Repository interface {
	CreateSession(ctx context.Context, sess chat.Session) error
	ListSessions(ctx context.Context) ([]chat.Session, error)
	GetSession(ctx context.Context, id string) (chat.Session, error)
	AppendEntry(ctx context.Context, e chat.Entry) (int64, error)
	History(ctx context.Context, sessionID string) ([]chat.Entry, error)
}

// Answerer runs the question-answering pipeline.
type Answerer interface {
	Query(ctx context.Context, question string) (query.Result, error)
}
