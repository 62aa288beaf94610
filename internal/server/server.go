// Package server exposes the mapping engine over HTTP: filter composition,
// request previews and the template store.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"apimapper/internal/config"
	"apimapper/internal/logging"
	"apimapper/internal/mapping"
	"apimapper/internal/state"
	"apimapper/internal/store"
)

const maxBodyBytes = 1 << 20

// Server routes API requests.
type Server struct {
	router      chi.Router
	store       *store.FileStore
	composer    mapping.FilterComposer
	corsOrigins []string
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins sets the allowed origins. The default allows all.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithFilterComposer replaces the in-process composer.
func WithFilterComposer(fc mapping.FilterComposer) Option {
	return func(s *Server) { s.composer = fc }
}

// New creates a server. A nil store disables the template routes.
func New(st *store.FileStore, opts ...Option) *Server {
	s := &Server{
		store:       st,
		composer:    mapping.LocalComposer{},
		corsOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}).Handler)

	r.Get("/health", handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/filters/compose", s.handleComposeFilter)
		r.Post("/requests/preview", s.handlePreview)

		if s.store != nil {
			r.Route("/templates", func(r chi.Router) {
				r.Get("/", s.handleListTemplates)
				r.Post("/", s.handleSaveTemplate)
				r.Get("/{id}", s.handleGetTemplate)
				r.Delete("/{id}", s.handleDeleteTemplate)
			})
		}
	})
	return r
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Logf(logging.Info, "Starting API server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			logging.Logf(logging.Info, "%s %s -> %d (%d bytes, %s) request_id=%s",
				r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(),
				time.Since(start).Round(time.Millisecond), middleware.GetReqID(r.Context()))
		}()
		next.ServeHTTP(ww, r)
	})
}

// ErrorResponse is the body of every failed call.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logging.Logf(logging.Error, "Failed to encode response: %v", err)
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: true, Message: message})
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleComposeFilter(w http.ResponseWriter, r *http.Request) {
	var req mapping.FilterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid filter request: "+err.Error())
		return
	}
	sub, err := s.composer.ComposeFilter(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

// PreviewRequest is a request config plus the live state to compose it with.
type PreviewRequest struct {
	Config     config.RequestConfig      `json:"config"`
	Pagination state.Pagination          `json:"pagination"`
	Sort       *state.Sort               `json:"sort,omitempty"`
	Filter     interface{}               `json:"filter,omitempty"`
	Submission *mapping.FilterSubmission `json:"submission,omitempty"`
}

// PreviewResponse carries the composed request and the edited config.
type PreviewResponse struct {
	Request  mapping.Descriptor   `json:"request"`
	Config   config.RequestConfig `json:"config"`
	Warnings []string             `json:"warnings"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid preview request: "+err.Error())
		return
	}
	cfg := req.Config.Clone()
	config.ApplyRequestDefaults(&cfg)
	if err := config.ValidateRequest(&cfg); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	desc, warnings := mapping.NewComposer().Build(&cfg, mapping.Inputs{
		Pagination: req.Pagination,
		Sort:       req.Sort,
		Filter:     req.Filter,
	}, req.Submission)
	if warnings == nil {
		warnings = []string{}
	}
	respondJSON(w, http.StatusOK, PreviewResponse{Request: desc, Config: cfg, Warnings: warnings})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	list, err := s.store.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl config.DataSourceTemplate
	if err := decodeJSON(r, &tpl); err != nil {
		respondError(w, http.StatusBadRequest, "invalid template: "+err.Error())
		return
	}
	status := http.StatusCreated
	if tpl.ID != "" {
		status = http.StatusOK
	}
	saved, err := s.store.Save(tpl)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, status, saved)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}
