package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	dbpkg "github.com/benedict2310/storepulse/internal/db"
	"github.com/benedict2310/storepulse/internal/dedup"
	"github.com/benedict2310/storepulse/internal/store"
)

const (
	shutdownTimeout = 10 * time.Second
	startupTimeout  = 30 * time.Second
)

type Server struct {
	cfg        Config
	logger     *slog.Logger
	version    string
	nowFn      func() time.Time
	listener   net.Listener
	httpServer *http.Server
	errCh      chan error

	// store and filter are opened by Start unless already set.
	store      store.Store
	ownedStore *store.SQLStore
	filter     dedup.Filter
	memFilter  *dedup.Memory
	redis      *dedup.Redis

	retention *loop
	sweeper   *loop
}

func New(cfg Config, logger *slog.Logger, version string) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	srv := &Server{
		cfg:     cfg,
		logger:  logger,
		version: version,
		nowFn:   time.Now,
		errCh:   make(chan error, 1),
	}
	srv.httpServer = &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Handler exposes the router without binding a listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) now() time.Time {
	return s.nowFn()
}

func (s *Server) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if err := s.openStore(ctx); err != nil {
		return err
	}
	if err := s.openDedup(ctx); err != nil {
		_ = s.closeBackends()
		return err
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		_ = s.closeBackends()
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr(), err)
	}
	s.listener = ln

	if !isLoopbackHost(s.cfg.BindAddr) {
		s.logger.Warn("binding to non-loopback address", "bind", s.cfg.BindAddr)
	}
	if s.cfg.AdminSecret == "" {
		s.logger.Warn("adminSecret is not set; admin endpoints are disabled")
	}

	s.startRetentionLoop()
	s.startDedupSweepLoop()

	s.logger.Info("pulsed starting",
		"listen_addr", ln.Addr().String(),
		"db_driver", s.cfg.DBOptions().Dialect,
		"dedup_backend", s.cfg.Dedup.Backend,
		"retention_days", s.cfg.RetentionDays,
		"version", s.version,
	)

	go func() {
		err := s.httpServer.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			s.errCh <- err
		}
		close(s.errCh)
	}()

	return nil
}

func (s *Server) openStore(ctx context.Context) error {
	if s.store != nil {
		return nil
	}
	opts := s.cfg.DBOptions()
	if opts.Dialect == dbpkg.DialectSQLite {
		if err := ensureDBDir(opts.Path); err != nil {
			return err
		}
	}
	st, err := store.Open(ctx, opts)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	s.store = st
	s.ownedStore = st
	return nil
}

func (s *Server) openDedup(ctx context.Context) error {
	if s.filter != nil {
		if mem, ok := s.filter.(*dedup.Memory); ok {
			s.memFilter = mem
		}
		return nil
	}
	switch s.cfg.Dedup.Backend {
	case DedupBackendRedis:
		r, err := dedup.DialRedis(ctx, s.cfg.Dedup.RedisURL, s.cfg.Dedup.Window)
		if err != nil {
			return fmt.Errorf("open dedup backend: %w", err)
		}
		s.redis = r
		s.filter = r
	default:
		s.memFilter = dedup.NewMemory(s.cfg.Dedup.Window)
		s.filter = s.memFilter
	}
	return nil
}

func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	select {
	case err := <-s.errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil && s.ownedStore == nil && s.redis == nil {
		return nil
	}

	s.logger.Info("pulsed shutting down")
	if s.listener != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		if err, ok := <-s.errCh; ok && err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		s.listener = nil
	}
	if err := s.retention.stop(ctx); err != nil {
		return fmt.Errorf("stop retention loop: %w", err)
	}
	if err := s.sweeper.stop(ctx); err != nil {
		return fmt.Errorf("stop dedup sweep loop: %w", err)
	}
	s.retention, s.sweeper = nil, nil
	return s.closeBackends()
}

func (s *Server) closeBackends() error {
	var firstErr error
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			firstErr = fmt.Errorf("close redis: %w", err)
		}
		s.redis = nil
		s.filter = nil
	}
	if s.ownedStore != nil {
		if err := s.ownedStore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.ownedStore = nil
		s.store = nil
	}
	return firstErr
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}

func parseLogLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug|info|warn|error)", level)
	}
}

func NewLogger(level string) (*slog.Logger, error) {
	parsed, err := parseLogLevel(level)
	if err != nil {
		return nil, err
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parsed})
	return slog.New(h), nil
}
