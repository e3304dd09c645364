package handler

import (
	"net/http"

	"github.com/remiblancher/primlab/internal/api/service"
)

// CatalogHandler handles backend and vector listings.
type CatalogHandler struct {
	service *service.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(s *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: s}
}

// Backends handles GET /api/v1/backends
func (h *CatalogHandler) Backends(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Backends(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Vectors handles GET /api/v1/vectors?primitive=<name>
func (h *CatalogHandler) Vectors(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Vectors(r.Context(), r.URL.Query().Get("primitive"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
