package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"scoreframe/internal/config"
	"scoreframe/internal/journal"
	"scoreframe/internal/logging"
	"scoreframe/internal/pipeline"
)

// Converter runs a single conversion request. The pipeline satisfies it; test
// servers substitute fakes.
type Converter interface {
	Convert(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Server exposes the conversion API over HTTP. One process owns the work
// area at a time, enforced with a file lock.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	converter Converter
	store     *journal.Store
	version   string

	startedAt time.Time
	listener  net.Listener
	server    *http.Server
	lock      *flock.Flock
}

// New builds a server around the given converter. store may be nil; the jobs
// endpoints then report empty results.
func New(cfg *config.Config, logger *slog.Logger, converter Converter, store *journal.Store, version string) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "server"),
		converter: converter,
		store:     store,
		version:   version,
	}
}

// Handler builds the HTTP routing table. Exposed for httptest-based tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	token := s.cfg.Server.APIToken
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/convert", authMiddleware(token, s.handleConvert))
	mux.HandleFunc("/api/status", authMiddleware(token, s.handleStatus))
	mux.HandleFunc("/api/jobs", authMiddleware(token, s.handleJobs))
	mux.HandleFunc("/api/jobs/", authMiddleware(token, s.handleJob))
	return mux
}

// Start acquires the instance lock and begins serving. It returns once the
// listener is bound; Stop or context cancellation shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	if err := s.cfg.EnsureDirectories(); err != nil {
		return err
	}

	lockPath := s.cfg.LockFilePath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another scoreframe server already holds %s", lockPath)
	}
	s.lock = lock

	listener, err := net.Listen("tcp", s.cfg.Server.Bind)
	if err != nil {
		_ = lock.Unlock()
		return fmt.Errorf("listen on %s: %w", s.cfg.Server.Bind, err)
	}
	s.listener = listener
	s.startedAt = time.Now()

	// Write timeout must exceed the conversion budget or long encodes get
	// their responses cut off.
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout() + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "server_started"),
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.cfg.Server.APIToken != ""),
	)
	return nil
}

// Run starts the server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop gracefully shuts the server down and releases the instance lock.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.server = nil
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	if s.lock != nil {
		_ = s.lock.Unlock()
		s.lock = nil
	}
}

// Addr reports the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
