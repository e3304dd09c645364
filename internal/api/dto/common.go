// Package dto provides Data Transfer Objects for the REST API.
package dto

import (
	"github.com/remiblancher/primlab/internal/primitive"
	"github.com/remiblancher/primlab/internal/report"
)

// APIError represents a standardized error response.
type APIError struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Details provides additional context about the error.
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Status is "ok" or "degraded".
	Status string `json:"status"`

	// Version is the server version.
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	// Ready is true once a run has produced a report.
	Ready bool `json:"ready"`

	// Checks lists individual readiness checks.
	Checks map[string]bool `json:"checks,omitempty"`
}

// BackendListResponse lists the backends a run exercises.
type BackendListResponse struct {
	Backends []primitive.Descriptor `json:"backends"`
}

// VectorInfo summarizes one test vector without its payload.
type VectorInfo struct {
	ID            string             `json:"id"`
	Primitive     string             `json:"primitive"`
	Category      primitive.Category `json:"category,omitempty"`
	ExpectFailure bool               `json:"expect_failure,omitempty"`
	Origin        string             `json:"origin"`
}

// VectorListResponse lists the loaded test vectors.
type VectorListResponse struct {
	Total   int          `json:"total"`
	Vectors []VectorInfo `json:"vectors"`
}

// RunStatusResponse summarizes the state of the run service.
type RunStatusResponse struct {
	// Running is true while a run is in progress.
	Running bool `json:"running"`

	// Runs counts runs finished since the server started.
	Runs int `json:"runs"`

	// RunID and Status describe the latest report, if any.
	RunID   string         `json:"run_id,omitempty"`
	Status  report.Status  `json:"status,omitempty"`
	Partial bool           `json:"partial,omitempty"`
	Summary report.Summary `json:"summary"`

	// LastError is set when the latest run did not produce a report.
	LastError string `json:"last_error,omitempty"`
}

// RunAcceptedResponse acknowledges a started run.
type RunAcceptedResponse struct {
	Accepted bool   `json:"accepted"`
	Status   string `json:"status_url"`
}
