// Package server exposes the analytics over HTTP.
//
// The dataset is loaded once and swapped atomically when the inputs change;
// every request recomputes its metrics from the current dataset.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/payinsight/internal/loader"
	"github.com/leapstack-labs/payinsight/internal/state"
	"github.com/leapstack-labs/payinsight/internal/watch"
	"github.com/leapstack-labs/payinsight/pkg/core"
	"golang.org/x/sync/errgroup"
)

// Config configures a Server.
type Config struct {
	Addr     string
	Paths    loader.Paths
	Analysis core.AnalysisConfig
	// Watch reloads the dataset when an input file changes.
	Watch bool
	// Store, when set, serves run history at /api/runs.
	Store  state.Store
	Logger *slog.Logger
}

// Server serves the HTTP API.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	notifier *notifier

	mu       sync.RWMutex
	ds       *core.Dataset
	loadedAt time.Time
}

// New loads the dataset and prepares a Server.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{cfg: cfg, logger: cfg.Logger, notifier: newNotifier()}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithDataset prepares a Server around an already loaded dataset.
func NewWithDataset(ds *core.Dataset, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Server{cfg: cfg, logger: cfg.Logger, notifier: newNotifier(), ds: ds, loadedAt: time.Now()}
}

// Reload re-reads the input files. On failure the previous dataset stays.
func (s *Server) Reload(ctx context.Context) error {
	ds, err := loader.Load(ctx, s.cfg.Paths, s.logger)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	s.mu.Lock()
	s.ds = ds
	s.loadedAt = time.Now()
	s.mu.Unlock()
	s.notifier.broadcast()
	return nil
}

func (s *Server) dataset() (*core.Dataset, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds, s.loadedAt
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Compress(5),
		s.requestLogger,
	)
	s.routes(r)
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// Serve listens on cfg.Addr and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting API server", slog.String("addr", ln.Addr().String()))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cfg.Watch {
		eg.Go(func() error {
			return watch.Files(egctx, []string{s.cfg.Paths.Users, s.cfg.Paths.Transactions, s.cfg.Paths.Activity}, watch.DefaultDebounce, s.logger, func(changed string) {
				if err := s.Reload(egctx); err != nil {
					s.logger.Error("reload failed", slog.String("file", changed), slog.String("error", err.Error()))
					return
				}
				s.logger.Info("dataset reloaded", slog.String("file", changed))
			})
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Debug("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
