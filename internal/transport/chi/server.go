// Package chi serves the papershelf HTTP API on a chi router.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/papershelf/internal/domain"
	"github.com/kailas-cloud/papershelf/internal/domain/chat"
	"github.com/kailas-cloud/papershelf/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/papershelf/internal/usecase/health"
	"github.com/kailas-cloud/papershelf/internal/usecase/query"
)

// DefaultMaxUploadBytes caps the size of an uploaded PDF.
const DefaultMaxUploadBytes = 50 << 20

// multipart parts beyond this are spooled to disk by net/http.
const maxMemoryBytes = 8 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements ServerInterface.
type Server struct {
	ingester      Ingester
	querier       Querier
	library       Library
	chats         Chats
	health        HealthChecker
	logger        *zap.Logger
	maxUpload     int64
	errorHandlers []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server. chats may be nil when history is disabled.
func NewServer(
	ingester Ingester,
	querier Querier,
	library Library,
	chats Chats,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ingester:  ingester,
		querier:   querier,
		library:   library,
		chats:     chats,
		health:    health,
		logger:    logger,
		maxUpload: DefaultMaxUploadBytes,
	}
	// Timeout first: a missed deadline may also carry the sentinel of the failed call.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, ErrorCodeTimeout),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, ErrorCodeValidationError),
		sentinelHandler(domain.ErrInvalidConfiguration, http.StatusBadRequest, ErrorCodeInvalidConfiguration),
		sentinelHandler(domain.ErrModelUnavailable, http.StatusServiceUnavailable, ErrorCodeModelUnavailable),
		sentinelHandler(domain.ErrGenerationFailed, http.StatusBadGateway, ErrorCodeGenerationFailed),
		sentinelHandler(domain.ErrStorage, http.StatusInternalServerError, ErrorCodeStorageError),
	}
	return s
}

// WithMaxUploadSize overrides the upload size limit.
func (s *Server) WithMaxUploadSize(n int64) *Server {
	if n > 0 {
		s.maxUpload = n
	}
	return s
}

// UploadPaper handles POST /upload.
func (s *Server) UploadPaper(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge,
				fmt.Sprintf("file exceeds %d bytes", s.maxUpload))
			return
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid multipart body: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationError, "file field is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationError, "Only PDF files are supported")
		return
	}

	// The upload keeps its own name so a paper without a title falls back to it.
	dir, err := os.MkdirTemp("", "papershelf-upload-*")
	if err != nil {
		s.handleDomainError(w, fmt.Errorf("create temp dir: %w", err))
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name)
	if err := saveUpload(path, file); err != nil {
		s.handleDomainError(w, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	rep, err := s.ingester.Ingest(ctx, path)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)

	writeJSON(w, http.StatusOK, UploadResponse{
		ID:        rep.DocumentID,
		Title:     rep.Title,
		Author:    rep.Author,
		PageCount: rep.PageCount,
		Status:    rep.Status,
	})
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return nil
}

// QueryPapers handles POST /query.
func (s *Server) QueryPapers(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	var (
		res query.Result
		err error
	)
	ctx, usage := domain.NewContextWithUsage(r.Context())
	if req.SessionID != nil && *req.SessionID != "" {
		if s.chats == nil {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationError, "chat history is disabled")
			return
		}
		res, err = s.chats.Ask(ctx, *req.SessionID, req.Query)
	} else {
		res, err = s.querier.Query(ctx, req.Query)
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, QueryResponse{
		Query:              res.Query,
		Answer:             res.Answer,
		RetrievedDocuments: documentsToResponse(res.Documents),
	})
}

// GetStats handles GET /stats.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.library.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		Count:    st.Count,
		Name:     st.Name,
		Location: st.Location,
		Model: ModelResponse{
			Name:         st.Model.Name,
			Dimension:    st.Model.Dimension,
			MaxSeqLength: st.Model.MaxSeqLength,
		},
	})
}

// GetChunk handles GET /chunks/{id}.
func (s *Server) GetChunk(w http.ResponseWriter, r *http.Request, id string) {
	res, ok := s.library.GetChunk(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "chunk not found")
		return
	}

	writeJSON(w, http.StatusOK, ChunkResponse{
		ID:       res.ID(),
		Text:     res.Text(),
		Metadata: res.Metadata().Flatten(),
	})
}

// DeleteChunk handles DELETE /chunks/{id}.
func (s *Server) DeleteChunk(w http.ResponseWriter, r *http.Request, id string) {
	if !s.library.DeleteChunk(r.Context(), id) {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "chunk not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteDocument handles DELETE /documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request, id string) {
	n, err := s.library.DeleteDocument(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DeleteDocumentResponse{Deleted: n})
}

// CreateSession handles POST /sessions. The body is optional.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	if !s.chatsEnabled(w) {
		return
	}

	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	sess, err := s.chats.CreateSession(r.Context(), req.Title)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, sessionToResponse(sess))
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	if !s.chatsEnabled(w) {
		return
	}

	list, err := s.chats.ListSessions(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]SessionResponse, len(list))
	for i, sess := range list {
		items[i] = sessionToResponse(sess)
	}
	writeJSON(w, http.StatusOK, SessionListResponse{Items: items})
}

// GetSessionHistory handles GET /sessions/{id}/history.
func (s *Server) GetSessionHistory(w http.ResponseWriter, r *http.Request, id string) {
	if !s.chatsEnabled(w) {
		return
	}

	entries, err := s.chats.History(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		items[i] = HistoryEntry{
			ID:        e.ID,
			Query:     e.Query,
			Answer:    e.Answer,
			Sources:   sourcesToResponse(e.Sources),
			CreatedAt: e.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{SessionID: id, Items: items})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) chatsEnabled(w http.ResponseWriter) bool {
	if s.chats == nil {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "chat history is disabled")
		return false
	}
	return true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage exposes client errors in full and reduces backend
// errors to their sentinel text.
func safeDomainMessage(err error) string {
	for _, s := range []error{domain.ErrValidation, domain.ErrInvalidConfiguration, domain.ErrNotFound} {
		if errors.Is(err, s) {
			return err.Error()
		}
	}
	sentinels := []error{
		domain.ErrTimeout,
		domain.ErrModelUnavailable,
		domain.ErrGenerationFailed,
		domain.ErrStorage,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func documentsToResponse(docs []result.Result) []RetrievedDocument {
	return sourcesToResponse(chat.SourcesFromResults(docs))
}

func sourcesToResponse(sources []chat.Source) []RetrievedDocument {
	out := make([]RetrievedDocument, len(sources))
	for i, src := range sources {
		meta := src.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		out[i] = RetrievedDocument{
			ID:       src.ID,
			Text:     src.Text,
			Metadata: meta,
			Distance: src.Distance,
		}
	}
	return out
}

func sessionToResponse(s chat.Session) SessionResponse {
	return SessionResponse{
		ID:         s.ID,
		Title:      s.Title,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
		QueryCount: s.QueryCount,
	}
}
