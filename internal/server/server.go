// Package server exposes run history and receives outreach webhooks.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/store"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// Tracker records outreach events.
type Tracker interface {
	TrackEmailEvent(ctx context.Context, leadID string, emailNumber int, event, sentiment string) error
	TrackConversion(ctx context.Context, leadID, conversionType string) error
}

// Server holds the handlers' collaborators.
type Server struct {
	store    store.Store
	tracker  Tracker
	validate *validator.Validate
	origins  []string
}

// New creates a server. An empty origins list allows any origin.
func New(st store.Store, tracker Tracker, origins []string) *Server {
	return &Server{
		store:    st,
		tracker:  tracker,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		origins:  origins,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/email-events", s.handleEmailEvent)
		r.Post("/conversions", s.handleConversion)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		zap.L().Info("server: listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		zap.L().Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func parseLimit(raw string) (uint64, error) {
	if raw == "" {
		return defaultRunsLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return uint64(min(n, maxRunsLimit)), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
