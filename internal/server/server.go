// Package server provides the HTTP trigger and dashboard API.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bryan-buckman/newsreel/internal/model"
	"github.com/bryan-buckman/newsreel/internal/worker"
	"github.com/bryan-buckman/newsreel/internal/youtube"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultArticlesLimit is how many feed entries the articles view inspects.
const DefaultArticlesLimit = 50

// Runner starts a pass and reports the configured channels.
type Runner interface {
	Run(ctx context.Context) (*model.RunRecord, error)
	Channels() []model.Channel
}

// StateReader reads persisted run state.
type StateReader interface {
	LastRun(ctx context.Context) (model.RunRecord, error)
	SeenArticles(ctx context.Context) (model.SeenMap, error)
}

// Deps are the collaborators behind the API.
type Deps struct {
	Runner     Runner
	State      StateReader
	Fetcher    worker.FeedFetcher
	Authorizer worker.Authorizer
}

// Options configure the API.
type Options struct {
	FeedURL       string
	ArticlesLimit int
	// APIToken, when set, is required as a bearer token on POST routes.
	APIToken   string
	RunTimeout time.Duration
}

// Server is the main HTTP server.
type Server struct {
	deps   Deps
	opts   Options
	router chi.Router
	logger *slog.Logger
	http   *http.Server

	baseCtx    context.Context
	cancelRuns context.CancelFunc
	runs       sync.WaitGroup
}

// New creates a new server.
func New(deps Deps, opts Options, logger *slog.Logger) *Server {
	if opts.ArticlesLimit <= 0 {
		opts.ArticlesLimit = DefaultArticlesLimit
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = worker.DefaultRunTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		deps:       deps,
		opts:       opts,
		logger:     logger.With("component", "server"),
		baseCtx:    ctx,
		cancelRuns: cancel,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.With(s.requireToken).Post("/run", s.handleRun)
		r.Get("/status", s.handleStatus)
		r.Get("/articles", s.handleArticles)
		r.Get("/auth-status", s.handleAuthStatus)
	})

	s.router = r
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("server starting", "addr", addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, cancels triggered runs and waits for them.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	s.cancelRuns()
	s.runs.Wait()
	return err
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRun starts a detached pass; the response does not wait for it.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		ctx, cancel := context.WithTimeout(s.baseCtx, s.opts.RunTimeout)
		defer cancel()
		record, err := s.deps.Runner.Run(ctx)
		switch {
		case errors.Is(err, worker.ErrRunInProgress):
			s.logger.Info("triggered run skipped, another run is active")
		case err != nil:
			s.logger.Error("triggered run failed", "error", err)
		default:
			s.logger.Info("triggered run complete", "items", len(record.Items), "failures", len(record.Failures))
		}
	}()
	s.writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

// handleStatus never fails; read errors yield an empty record.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.State.LastRun(r.Context())
	if err != nil {
		s.logger.Warn("status read failed", "error", err)
		s.writeJSON(w, http.StatusOK, map[string]any{
			"lastRun": model.EmptyRunRecord(),
			"error":   err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"lastRun": run})
}

// handleAuthStatus never fails; errors report channels as unauthorized.
func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	authorized := make(map[model.ChannelID]bool)
	var errs []string
	for _, ch := range s.deps.Runner.Channels() {
		err := s.deps.Authorizer.Authorized(r.Context(), ch.ID)
		authorized[ch.ID] = err == nil
		var missing *youtube.AuthorizationMissingError
		if err != nil && !errors.As(err, &missing) {
			errs = append(errs, err.Error())
		}
	}
	resp := map[string]any{"ok": len(errs) == 0, "authorized": authorized}
	if len(errs) > 0 {
		resp["error"] = strings.Join(errs, "; ")
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// --- Middleware ---

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.APIToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.APIToken)) != 1 {
			s.writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", "error", err)
	}
}
