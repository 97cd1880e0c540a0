// Package api serves stored alignment runs over a read-only HTTP interface.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/forPelevin/vidalign/internal/logging"
	"github.com/forPelevin/vidalign/internal/types"
)

// RunReader is the part of the run store the API reads from.
type RunReader interface {
	ListRuns(ctx context.Context, limit int) ([]types.RunSummary, error)
	GetRun(ctx context.Context, id string) (types.RunSummary, error)
	ListRows(ctx context.Context, runID, videoID string) ([]types.AlignedRow, error)
	ListIssues(ctx context.Context, runID string) ([]types.Issue, error)
}

type ServerConfig struct {
	Bind      string
	Runs      RunReader
	Logger    *slog.Logger
	StartTime time.Time
	Version   string
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(cfg ServerConfig) *Server {
	cfg.Logger = logging.NewComponentLogger(cfg.Logger, "api")
	if cfg.StartTime.IsZero() {
		cfg.StartTime = time.Now()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Bind,
			Handler:           NewRouter(cfg),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

// Start blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", logging.Args(logging.String("addr", s.httpServer.Addr))...)
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", logging.Args(logging.String("addr", ln.Addr().String()))...)
	err := s.httpServer.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
