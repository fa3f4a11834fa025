package chi

import (
	"context"

	"github.com/kailas-cloud/papershelf/internal/domain/chat"
	"github.com/kailas-cloud/papershelf/internal/domain/search/result"
	"github.com/kailas-cloud/papershelf/internal/usecase/health"
	"github.com/kailas-cloud/papershelf/internal/usecase/ingest"
	"github.com/kailas-cloud/papershelf/internal/usecase/library"
	"github.com/kailas-cloud/papershelf/internal/usecase/query"
)

// Ingester turns a PDF on disk into stored chunks.
type Ingester interface {
	Ingest(ctx context.Context, path string) (ingest.Report, error)
}

// Querier answers a question over the library.
type Querier interface {
	Query(ctx context.Context, question string) (query.Result, error)
}

// Library serves chunk lookups, deletions and statistics.
type Library interface {
	GetChunk(ctx context.Context, id string) (result.Result, bool)
	DeleteChunk(ctx context.Context, id string) bool
	DeleteDocument(ctx context.Context, documentID string) (int, error)
	Stats(ctx context.Context) (library.Stats, error)
}

// Chats manages chat sessions.
type Chats interface {
	CreateSession(ctx context.Context, title string) (chat.Session, error)
	ListSessions(ctx context.Context) ([]chat.Session, error)
	History(ctx context.Context, sessionID string) ([]chat.Entry, error)
	Ask(ctx context.Context, sessionID, question string) (query.Result, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}
