package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/remiblancher/primlab/internal/api/router"
	"github.com/remiblancher/primlab/internal/api/service"
	"github.com/remiblancher/primlab/internal/logging"
	"github.com/remiblancher/primlab/internal/suite"
)

// Server represents the HTTP server.
type Server struct {
	cfg     *Config
	version string
	log     logging.Logger
	runs    *service.RunService
	catalog *service.CatalogService
	out     io.Writer
}

// New creates a new Server over s. Background runs stop when ctx is done.
func New(ctx context.Context, cfg *Config, version string, s *suite.Suite, log logging.Logger, out io.Writer) *Server {
	if out == nil {
		out = io.Discard
	}
	return &Server{
		cfg:     cfg,
		version: version,
		log:     logging.OrDiscard(log),
		runs:    service.NewRunService(ctx, s, log),
		catalog: service.NewCatalogService(s),
		out:     out,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return router.New(&router.Config{
		Version: s.version,
		Runs:    s.runs,
		Catalog: s.catalog,
	})
}

// Runs returns the run service.
func (s *Server) Runs() *service.RunService {
	return s.runs
}

// Start listens on the configured address and blocks until ctx is done,
// then shuts down gracefully and waits for a run in progress to stop.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	s.printStartupInfo(ln.Addr().String())
	if s.cfg.RunOnStart {
		if err := s.runs.Start(); err != nil {
			return err
		}
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.log.Info(ctx, "shutting down", "addr", ln.Addr().String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.runs.Wait()
	s.log.Info(ctx, "server stopped")
	return nil
}

// printStartupInfo prints server startup information.
func (s *Server) printStartupInfo(addr string) {
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "primlab API Server")
	fmt.Fprintln(s.out, "==================")
	fmt.Fprintf(s.out, "  Version:  %s\n", s.version)
	fmt.Fprintf(s.out, "  Address:  http://%s\n", addr)
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Endpoints:")
	fmt.Fprintln(s.out, "  GET  /health                       - Health check")
	fmt.Fprintln(s.out, "  GET  /ready                        - Readiness check")
	fmt.Fprintln(s.out, "  GET  /metrics                      - Prometheus metrics")
	fmt.Fprintln(s.out, "  GET  /api/openapi.yaml             - OpenAPI specification")
	fmt.Fprintln(s.out, "  GET  /api/v1/backends              - Registered backends")
	fmt.Fprintln(s.out, "  GET  /api/v1/vectors               - Loaded test vectors")
	fmt.Fprintln(s.out, "  POST /api/v1/runs                  - Start a run")
	fmt.Fprintln(s.out, "  GET  /api/v1/runs/latest           - Latest report")
	fmt.Fprintln(s.out, "  GET  /api/v1/runs/latest/status    - Run status")
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Use Ctrl+C to stop")
	fmt.Fprintln(s.out)
}
