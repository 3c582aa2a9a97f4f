// Package server exposes the pipeline over HTTP. The two processing routes
// stream Server-Sent Events so the client sees debug lines, table previews
// and errors as they happen.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/knagasawa/bidsheet/internal/common"
	"github.com/knagasawa/bidsheet/internal/event"
	"github.com/knagasawa/bidsheet/internal/pipeline"
	"github.com/knagasawa/bidsheet/internal/publish"
)

// extractRunner runs the extraction half of the pipeline.
type extractRunner interface {
	Run(ctx context.Context, req pipeline.ExtractRequest, sink event.Sink) (pipeline.ExtractResult, error)
}

// publishRunner runs the publication half.
type publishRunner interface {
	Run(ctx context.Context, req pipeline.PublishRequest, sink event.Sink) (publish.Result, error)
}

// healthChecker probes the document host end to end.
type healthChecker interface {
	Health(ctx context.Context) error
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	log       *zap.Logger
	extract   extractRunner
	publish   publishRunner
	health    healthChecker
	maxUpload int64
}

// New creates a server. maxUpload bounds multipart memory per request; zero
// falls back to 64 MiB.
func New(log *zap.Logger, extract extractRunner, publish publishRunner, health healthChecker, maxUpload int64) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if maxUpload <= 0 {
		maxUpload = 64 << 20
	}
	return &Server{
		log:       log,
		extract:   extract,
		publish:   publish,
		health:    health,
		maxUpload: maxUpload,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)

	r.Post("/api/step1", s.handleStep1)
	r.Post("/api/step2", s.handleStep2)
	r.Get("/api/health/host", s.handleHostHealth)
	return r
}

// requestID tags every request with a UUID for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(common.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("http.request",
			zap.String("request_id", common.RequestIDFromContext(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
