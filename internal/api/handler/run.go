package handler

import (
	"bytes"
	"net/http"

	"github.com/remiblancher/primlab/internal/api/dto"
	apierrors "github.com/remiblancher/primlab/internal/api/errors"
	"github.com/remiblancher/primlab/internal/api/service"
	"github.com/remiblancher/primlab/internal/report"
)

var contentTypes = map[report.Format]string{
	report.FormatJSON: "application/json",
	report.FormatYAML: "application/yaml",
	report.FormatCBOR: "application/cbor",
	report.FormatText: "text/plain; charset=utf-8",
}

// RunHandler handles run-related HTTP requests.
type RunHandler struct {
	service *service.RunService
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(s *service.RunService) *RunHandler {
	return &RunHandler{service: s}
}

// Start handles POST /api/v1/runs
func (h *RunHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Start(); err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, dto.RunAcceptedResponse{
		Accepted: true,
		Status:   "/api/v1/runs/latest/status",
	})
}

// Latest handles GET /api/v1/runs/latest?format=json|yaml|cbor|text
func (h *RunHandler) Latest(w http.ResponseWriter, r *http.Request) {
	format := report.FormatJSON
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := report.ParseFormat(q)
		if err != nil {
			respondError(w, http.StatusBadRequest, apierrors.NewBadRequest(err.Error()))
			return
		}
		format = f
	}

	rep, err := h.service.Latest()
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Encode(&buf, rep, format); err != nil {
		handleServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentTypes[format])
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Status handles GET /api/v1/runs/latest/status
func (h *RunHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.Status())
}
