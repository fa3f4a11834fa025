package chi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ErrorCode is the machine-readable error code of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest           ErrorCode = "bad_request"
	ErrorCodeUnauthorized         ErrorCode = "unauthorized"
	ErrorCodePayloadTooLarge      ErrorCode = "payload_too_large"
	ErrorCodeInvalidConfiguration ErrorCode = "invalid_configuration"
	ErrorCodeValidationError      ErrorCode = "validation_error"
	ErrorCodeNotFound             ErrorCode = "not_found"
	ErrorCodeModelUnavailable     ErrorCode = "model_unavailable"
	ErrorCodeGenerationFailed     ErrorCode = "generation_failed"
	ErrorCodeStorageError         ErrorCode = "storage_error"
	ErrorCodeTimeout              ErrorCode = "timeout"
	ErrorCodeInternalError        ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// UploadResponse reports an ingested paper.
type UploadResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	PageCount int    `json:"page_count"`
	Status    string `json:"status"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query     string  `json:"query"`
	SessionID *string `json:"session_id,omitempty"`
}

// RetrievedDocument is a chunk returned with an answer.
type RetrievedDocument struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Distance float64           `json:"distance"`
}

// QueryResponse is the answer to a question.
type QueryResponse struct {
	Query              string              `json:"query"`
	Answer             string              `json:"answer"`
	RetrievedDocuments []RetrievedDocument `json:"retrieved_documents"`
}

// ChunkResponse is a stored chunk.
type ChunkResponse struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// ModelResponse describes the embedding model.
type ModelResponse struct {
	Name         string `json:"name"`
	Dimension    int    `json:"dimension"`
	MaxSeqLength int    `json:"max_seq_length"`
}

// StatsResponse describes the library.
type StatsResponse struct {
	Count    int           `json:"count"`
	Name     string        `json:"name"`
	Location string        `json:"location"`
	Model    ModelResponse `json:"model"`
}

// DeleteDocumentResponse reports how many chunks were removed.
type DeleteDocumentResponse struct {
	Deleted int `json:"deleted"`
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	Title string `json:"title"`
}

// SessionResponse is a chat session.
type SessionResponse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	QueryCount int       `json:"query_count"`
}

// SessionListResponse lists chat sessions, newest first.
type SessionListResponse struct {
	Items []SessionResponse `json:"items"`
}

// HistoryEntry is one recorded exchange.
type HistoryEntry struct {
	ID        int64               `json:"id"`
	Query     string              `json:"query"`
	Answer    string              `json:"answer"`
	Sources   []RetrievedDocument `json:"sources"`
	CreatedAt time.Time           `json:"created_at"`
}

// HistoryResponse is the chronological history of a session.
type HistoryResponse struct {
	SessionID string         `json:"session_id"`
	Items     []HistoryEntry `json:"items"`
}

// HealthResponse reports component health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (POST /upload)
	UploadPaper(w http.ResponseWriter, r *http.Request)
	// (POST /query)
	QueryPapers(w http.ResponseWriter, r *http.Request)
	// (GET /stats)
	GetStats(w http.ResponseWriter, r *http.Request)
	// (GET /chunks/{id})
	GetChunk(w http.ResponseWriter, r *http.Request, id string)
	// (DELETE /chunks/{id})
	DeleteChunk(w http.ResponseWriter, r *http.Request, id string)
	// (DELETE /documents/{id})
	DeleteDocument(w http.ResponseWriter, r *http.Request, id string)
	// (POST /sessions)
	CreateSession(w http.ResponseWriter, r *http.Request)
	// (GET /sessions)
	ListSessions(w http.ResponseWriter, r *http.Request)
	// (GET /sessions/{id}/history)
	GetSessionHistory(w http.ResponseWriter, r *http.Request, id string)
	// (GET /health)
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	Metrics(w http.ResponseWriter, r *http.Request)
}

// MiddlewareFunc wraps a single route handler.
type MiddlewareFunc func(http.Handler) http.Handler

// InvalidParamFormatError reports a path parameter that failed to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// ServerInterfaceWrapper converts requests to handler calls with bound parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) wrap(handler http.Handler) http.Handler {
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	return handler
}

func (siw *ServerInterfaceWrapper) bindID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "id", Err: err})
		return "", false
	}
	return id, true
}

func (siw *ServerInterfaceWrapper) plain(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		siw.wrap(http.HandlerFunc(fn)).ServeHTTP(w, r)
	}
}

func (siw *ServerInterfaceWrapper) withID(fn func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := siw.bindID(w, r)
		if !ok {
			return
		}
		siw.wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fn(w, r, id)
		})).ServeHTTP(w, r)
	}
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler creates http.Handler with routing matching the API.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		}
	}
	siw := &ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}
	base := options.BaseURL

	r.Group(func(r chi.Router) {
		r.Post(base+"/upload", siw.plain(si.UploadPaper))
		r.Post(base+"/query", siw.plain(si.QueryPapers))
		r.Get(base+"/stats", siw.plain(si.GetStats))
		r.Get(base+"/chunks/{id}", siw.withID(si.GetChunk))
		r.Delete(base+"/chunks/{id}", siw.withID(si.DeleteChunk))
		r.Delete(base+"/documents/{id}", siw.withID(si.DeleteDocument))
		r.Post(base+"/sessions", siw.plain(si.CreateSession))
		r.Get(base+"/sessions", siw.plain(si.ListSessions))
		r.Get(base+"/sessions/{id}/history", siw.withID(si.GetSessionHistory))
		r.Get(base+"/health", siw.plain(si.HealthCheck))
		r.Get(base+"/metrics", siw.plain(si.Metrics))
	})

	return r
}
