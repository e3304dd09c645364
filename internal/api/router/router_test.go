package router

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remiblancher/primlab/internal/api/dto"
	apierrors "github.com/remiblancher/primlab/internal/api/errors"
	"github.com/remiblancher/primlab/internal/api/service"
	"github.com/remiblancher/primlab/internal/primitive"
	"github.com/remiblancher/primlab/internal/registry"
	"github.com/remiblancher/primlab/internal/report"
	"github.com/remiblancher/primlab/internal/result"
	"github.com/remiblancher/primlab/internal/suite"
	"github.com/remiblancher/primlab/internal/vectors"
)

// =============================================================================
// Fixtures
// =============================================================================

type sha struct{}

func (sha) Size() int { return sha256.Size }

func (sha) Digest(m []byte) ([]byte, error) {
	d := sha256.Sum256(m)
	return d[:], nil
}

// fakeRunner returns a fixed report, optionally blocking until released.
type fakeRunner struct {
	release chan struct{}
	started chan struct{}
	err     error
}

func (f *fakeRunner) Run(ctx context.Context) (*suite.Outcome, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	r, err := report.Build(report.Input{
		Seed: 3,
		Results: []result.RunResult{{
			Kind: result.KindVector, CaseID: "sha256-abc", Primitive: "sha256", Backend: "ref", Outcome: result.Pass,
		}},
	})
	if err != nil {
		return nil, err
	}
	return &suite.Outcome{Report: r}, nil
}

type fakeCatalog struct{}

func (fakeCatalog) Backends() (*registry.Set, error) {
	reg := registry.New()
	if err := reg.RegisterHash(primitive.Descriptor{Primitive: "sha256", Backend: "ref", Reference: true}, sha{}); err != nil {
		return nil, err
	}
	if err := reg.RegisterHash(primitive.Descriptor{Primitive: "sha256", Backend: "alt"}, sha{}); err != nil {
		return nil, err
	}
	return reg.Snapshot()
}

func (fakeCatalog) LoadVectors() (*vectors.Store, error) {
	return vectors.NewStore([]vectors.Vector{
		{ID: "a", Primitive: "sha256", Category: primitive.CategoryHash, Origin: "hash/sha256.yaml"},
		{ID: "b", Primitive: "sha256", Category: primitive.CategoryHash, Origin: "hash/sha256.yaml"},
		{ID: "c", Primitive: "aes", Category: primitive.CategoryBlockCipher, Origin: "cipher/aes.yaml"},
	})
}

func newTestRouter(t *testing.T, runner service.Runner) (http.Handler, *service.RunService) {
	t.Helper()
	runs := service.NewRunService(context.Background(), runner, nil)
	return New(&Config{
		Version: "test",
		Runs:    runs,
		Catalog: service.NewCatalogService(fakeCatalog{}),
	}), runs
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// =============================================================================
// Health
// =============================================================================

func TestU_Router_HealthAndReady(t *testing.T) {
	h, runs := newTestRouter(t, &fakeRunner{})

	rec := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", decode[dto.HealthResponse](t, rec).Version)

	rec = do(t, h, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, decode[dto.ReadyResponse](t, rec).Ready)

	_, err := runs.Run(context.Background())
	require.NoError(t, err)

	rec = do(t, h, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[dto.ReadyResponse](t, rec).Ready)
}

func TestU_Router_MetricsAndOpenAPI(t *testing.T) {
	h, _ := newTestRouter(t, &fakeRunner{})

	rec := do(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/openapi.yaml")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/v1/runs/latest")
}

// =============================================================================
// Catalog
// =============================================================================

func TestU_Router_Backends(t *testing.T) {
	h, _ := newTestRouter(t, &fakeRunner{})

	rec := do(t, h, http.MethodGet, "/api/v1/backends")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[dto.BackendListResponse](t, rec)
	require.Len(t, resp.Backends, 2)
	assert.Equal(t, "ref", resp.Backends[0].Backend)
	assert.True(t, resp.Backends[0].Reference)
}

func TestU_Router_Vectors(t *testing.T) {
	h, _ := newTestRouter(t, &fakeRunner{})

	resp := decode[dto.VectorListResponse](t, do(t, h, http.MethodGet, "/api/v1/vectors"))
	assert.Equal(t, 3, resp.Total)

	resp = decode[dto.VectorListResponse](t, do(t, h, http.MethodGet, "/api/v1/vectors?primitive=sha256"))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "a", resp.Vectors[0].ID)
}

// =============================================================================
// Runs
// =============================================================================

func TestU_Router_LatestBeforeRun(t *testing.T) {
	h, _ := newTestRouter(t, &fakeRunner{})

	rec := do(t, h, http.MethodGet, "/api/v1/runs/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apierrors.CodeNoReport, decode[dto.APIError](t, rec).Code)
}

func TestU_Router_StartAndFetch(t *testing.T) {
	h, runs := newTestRouter(t, &fakeRunner{})

	rec := do(t, h, http.MethodPost, "/api/v1/runs")
	require.Equal(t, http.StatusAccepted, rec.Code)
	runs.Wait()

	rec = do(t, h, http.MethodGet, "/api/v1/runs/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var r report.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, report.Green, r.Status)
	assert.Equal(t, uint64(3), r.Seed)

	rec = do(t, h, http.MethodGet, "/api/v1/runs/latest?format=cbor")
	require.Equal(t, http.StatusOK, rec.Code)
	var fromCBOR report.Report
	require.NoError(t, cbor.Unmarshal(rec.Body.Bytes(), &fromCBOR))
	assert.Equal(t, r.RunID, fromCBOR.RunID)

	rec = do(t, h, http.MethodGet, "/api/v1/runs/latest?format=text")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))

	rec = do(t, h, http.MethodGet, "/api/v1/runs/latest?format=xml")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	status := decode[dto.RunStatusResponse](t, do(t, h, http.MethodGet, "/api/v1/runs/latest/status"))
	assert.False(t, status.Running)
	assert.Equal(t, 1, status.Runs)
	assert.Equal(t, r.RunID, status.RunID)
	assert.Equal(t, report.Green, status.Status)
}

func TestU_Router_RunInProgress(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{}), started: make(chan struct{}, 1)}
	h, runs := newTestRouter(t, runner)

	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/api/v1/runs").Code)
	<-runner.started

	rec := do(t, h, http.MethodPost, "/api/v1/runs")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apierrors.CodeRunInProgress, decode[dto.APIError](t, rec).Code)
	assert.True(t, decode[dto.RunStatusResponse](t, do(t, h, http.MethodGet, "/api/v1/runs/latest/status")).Running)

	close(runner.release)
	runs.Wait()
	assert.False(t, runs.Status().Running)
}

func TestU_Router_ConfigurationErrorStatus(t *testing.T) {
	cfgErr := primitive.NewConfigError(primitive.ErrUnknownPrimitive, "md5", "", "no backend registered")
	h, runs := newTestRouter(t, &fakeRunner{err: cfgErr})

	_, err := runs.Run(context.Background())
	require.ErrorIs(t, err, primitive.ErrUnknownPrimitive)

	status := decode[dto.RunStatusResponse](t, do(t, h, http.MethodGet, "/api/v1/runs/latest/status"))
	assert.Contains(t, status.LastError, "unknown primitive")

	code, apiErr := apierrors.MapError(err)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "md5", apiErr.Details["primitive"])
}
