// Package service provides business logic for the REST API.
package service

import (
	"context"
	"errors"
	"sync"

	"github.com/remiblancher/primlab/internal/api/dto"
	"github.com/remiblancher/primlab/internal/logging"
	"github.com/remiblancher/primlab/internal/report"
	"github.com/remiblancher/primlab/internal/suite"
)

var (
	// ErrBusy is returned when a run is requested while one is in progress.
	ErrBusy = errors.New("a run is already in progress")

	// ErrNoReport is returned before the first run has completed.
	ErrNoReport = errors.New("no run has completed yet")
)

// Runner is the part of the suite the service drives.
type Runner interface {
	Run(ctx context.Context) (*suite.Outcome, error)
}

// RunService serializes suite runs and keeps the latest report.
type RunService struct {
	runner Runner
	log    logging.Logger
	base   context.Context

	mu      sync.Mutex
	running bool
	runs    int
	latest  *report.Report
	lastErr error
	wg      sync.WaitGroup
}

// NewRunService creates a RunService. Background runs are bound to ctx, not
// to the request that started them.
func NewRunService(ctx context.Context, r Runner, log logging.Logger) *RunService {
	return &RunService{runner: r, log: logging.OrDiscard(log), base: ctx}
}

// Run executes a run synchronously.
func (s *RunService) Run(ctx context.Context) (*report.Report, error) {
	if !s.acquire() {
		return nil, ErrBusy
	}
	return s.execute(ctx)
}

// Start begins a run in the background and returns immediately.
func (s *RunService) Start() error {
	if !s.acquire() {
		return ErrBusy
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.execute(s.base)
	}()
	return nil
}

// Wait blocks until background runs have finished.
func (s *RunService) Wait() {
	s.wg.Wait()
}

func (s *RunService) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *RunService) execute(ctx context.Context) (*report.Report, error) {
	out, err := s.runner.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.runs++
	s.lastErr = err
	if out != nil && out.Report != nil {
		s.latest = out.Report
	}
	if err != nil {
		s.log.Warn(ctx, "run finished with error", "error", err)
	}
	if out == nil {
		return nil, err
	}
	return out.Report, err
}

// Latest returns the most recent report.
func (s *RunService) Latest() (*report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, ErrNoReport
	}
	return s.latest, nil
}

// Status describes the service state.
func (s *RunService) Status() *dto.RunStatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := &dto.RunStatusResponse{Running: s.running, Runs: s.runs}
	if s.latest != nil {
		resp.RunID = s.latest.RunID
		resp.Status = s.latest.Status
		resp.Partial = s.latest.Partial
		resp.Summary = s.latest.Summary
	}
	if s.lastErr != nil {
		resp.LastError = s.lastErr.Error()
	}
	return resp
}

// Ready reports whether a report is available.
func (s *RunService) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest != nil
}
