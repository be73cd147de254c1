// Package server exposes the knowledge base over a read-only JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/kamusis/skillbase/internal/corpus"
	"github.com/kamusis/skillbase/internal/kb"
	"github.com/kamusis/skillbase/internal/logger"
	"github.com/kamusis/skillbase/internal/search"
)

const (
	defaultPageSize = 100
	maxPageSize     = 100
	shutdownTimeout = 10 * time.Second
)

// BaseProvider returns the knowledge base to serve a request from.
type BaseProvider interface {
	Current() *kb.Base
}

// Config holds the listen address.
type Config struct {
	Host string
	Port int
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server serves the HTTP API.
type Server struct {
	router   *mux.Router
	provider BaseProvider
	config   *Config
}

// New creates a server reading from provider.
func New(provider BaseProvider, config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}
	s := &Server{
		router:   mux.NewRouter(),
		provider: provider,
		config:   config,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/documents", s.handleListDocuments).Methods("GET")
	api.HandleFunc("/documents/{id:.+}", s.handleGetDocument).Methods("GET")
	api.HandleFunc("/route", s.handleRoute).Methods("GET")
	api.HandleFunc("/search", s.handleSearch).Methods("GET")
	api.HandleFunc("/tags", s.handleTags).Methods("GET")

	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.G(ctx).WithField("addr", "http://"+srv.Addr).Info("HTTP server listening")

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "HTTP server failed")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown failed")
	}
	return nil
}

// requestIDMiddleware tags every request with an id, reusing X-Request-ID
// when the client sends one.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := logger.WithLogger(r.Context(), logger.G(r.Context()).WithField("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// DocumentSummary is a document without its body.
type DocumentSummary struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Skill       string   `json:"skill"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
}

// ListDocumentsResponse is returned by GET /api/documents.
type ListDocumentsResponse struct {
	Documents []DocumentSummary `json:"documents"`
	Total     int               `json:"total"`
	Offset    int               `json:"offset"`
	Limit     int               `json:"limit"`
	HasMore   bool              `json:"hasMore"`
}

// ResultResponse is one routed or searched document.
type ResultResponse struct {
	DocumentSummary
	Score float64 `json:"score"`
	Why   string  `json:"why"`
}

// QueryResponse is returned by the route and search endpoints.
type QueryResponse struct {
	Query   string           `json:"query"`
	Results []ResultResponse `json:"results"`
}

func summarize(d corpus.Document) DocumentSummary {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return DocumentSummary{
		ID:          d.ID,
		Kind:        d.Kind,
		Skill:       d.Skill,
		Title:       d.Title,
		Description: d.Description,
		Tags:        tags,
	}
}

func toResults(rs []search.Result) []ResultResponse {
	out := make([]ResultResponse, len(rs))
	for i, r := range rs {
		out[i] = ResultResponse{DocumentSummary: summarize(r.Document), Score: r.Score, Why: r.Why}
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, r, map[string]string{"status": "healthy"})
}

// handleListDocuments handles GET /api/documents
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	b, ok := s.base(w, r)
	if !ok {
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		s.writeErrorResponse(w, r, http.StatusBadRequest, "offset must be a non-negative integer", nil)
		return
	}
	limit, err := intParam(r, "limit", defaultPageSize)
	if err != nil || limit < 1 {
		s.writeErrorResponse(w, r, http.StatusBadRequest, "limit must be a positive integer", nil)
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	docs := b.Store.List()
	resp := ListDocumentsResponse{
		Documents: []DocumentSummary{},
		Total:     len(docs),
		Offset:    offset,
		Limit:     limit,
	}
	if offset < len(docs) {
		end := min(offset+limit, len(docs))
		for _, d := range docs[offset:end] {
			resp.Documents = append(resp.Documents, summarize(d))
		}
		resp.HasMore = end < len(docs)
	}
	s.writeJSONResponse(w, r, resp)
}

// handleGetDocument handles GET /api/documents/{id}
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	b, ok := s.base(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	d, err := b.Get(id)
	if err != nil {
		if corpus.IsNotFound(err) {
			s.writeErrorResponse(w, r, http.StatusNotFound, err.Error(), nil)
			return
		}
		s.writeErrorResponse(w, r, http.StatusInternalServerError, "failed to get document", err)
		return
	}
	s.writeJSONResponse(w, r, d)
}

// handleRoute handles GET /api/route
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	b, ok := s.base(w, r)
	if !ok {
		return
	}
	q := r.URL.Query().Get("q")
	limit, err := intParam(r, "limit", 0)
	if err != nil || limit < 0 {
		s.writeErrorResponse(w, r, http.StatusBadRequest, "limit must be a non-negative integer", nil)
		return
	}
	s.writeJSONResponse(w, r, QueryResponse{Query: q, Results: toResults(b.Route(q, limit))})
}

// handleSearch handles GET /api/search
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	b, ok := s.base(w, r)
	if !ok {
		return
	}
	q := r.URL.Query().Get("q")
	limit, err := intParam(r, "limit", 10)
	if err != nil || limit < 0 {
		s.writeErrorResponse(w, r, http.StatusBadRequest, "limit must be a non-negative integer", nil)
		return
	}
	results, err := b.Search(q, limit)
	if err != nil {
		s.writeErrorResponse(w, r, http.StatusInternalServerError, "search failed", err)
		return
	}
	s.writeJSONResponse(w, r, QueryResponse{Query: q, Results: toResults(results)})
}

// handleTags handles GET /api/tags
func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	b, ok := s.base(w, r)
	if !ok {
		return
	}
	s.writeJSONResponse(w, r, b.Topics.Map())
}

func (s *Server) base(w http.ResponseWriter, r *http.Request) (*kb.Base, bool) {
	b := s.provider.Current()
	if b == nil {
		s.writeErrorResponse(w, r, http.StatusServiceUnavailable, "knowledge base not loaded", nil)
		return nil, false
	}
	return b, true
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}

// writeJSONResponse writes a JSON response
func (s *Server) writeJSONResponse(w http.ResponseWriter, r *http.Request, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(r.Context()).WithError(err).Error("failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	if err != nil {
		logger.G(r.Context()).WithError(err).Error(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(r.Context()).WithError(err).Error("failed to encode error response")
	}
}
