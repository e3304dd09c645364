package service

import (
	"context"

	"github.com/remiblancher/primlab/internal/api/dto"
	"github.com/remiblancher/primlab/internal/registry"
	"github.com/remiblancher/primlab/internal/vectors"
)

// Catalog is the part of the suite that knows backends and vectors.
type Catalog interface {
	Backends() (*registry.Set, error)
	LoadVectors() (*vectors.Store, error)
}

// CatalogService lists what a run would exercise.
type CatalogService struct {
	catalog Catalog
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(c Catalog) *CatalogService {
	return &CatalogService{catalog: c}
}

// Backends lists the selected backends, reference first per primitive.
func (s *CatalogService) Backends(ctx context.Context) (*dto.BackendListResponse, error) {
	set, err := s.catalog.Backends()
	if err != nil {
		return nil, err
	}
	resp := &dto.BackendListResponse{}
	for _, b := range set.All() {
		resp.Backends = append(resp.Backends, b.Descriptor)
	}
	return resp, nil
}

// Vectors lists the loaded vectors, optionally restricted to one primitive.
func (s *CatalogService) Vectors(ctx context.Context, primitive string) (*dto.VectorListResponse, error) {
	st, err := s.catalog.LoadVectors()
	if err != nil {
		return nil, err
	}
	vs := st.All()
	if primitive != "" {
		vs = st.For(primitive)
	}
	resp := &dto.VectorListResponse{Total: len(vs), Vectors: make([]dto.VectorInfo, 0, len(vs))}
	for _, v := range vs {
		resp.Vectors = append(resp.Vectors, dto.VectorInfo{
			ID:            v.ID,
			Primitive:     v.Primitive,
			Category:      v.Category,
			ExpectFailure: v.ExpectFailure,
			Origin:        v.Origin,
		})
	}
	return resp, nil
}
