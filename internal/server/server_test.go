package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/soypat/depthmesh"
	"github.com/soypat/depthmesh/convert"
	"github.com/soypat/depthmesh/gateway"
	"github.com/soypat/depthmesh/internal/metrics"
	"github.com/soypat/depthmesh/render"
	"github.com/soypat/depthmesh/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubAnalyzer struct {
	err error
}

func (a stubAnalyzer) Analyze(ctx context.Context, imageURL string) (*depthmesh.Bundle, error) {
	if a.err != nil {
		return nil, a.err
	}
	b := depthmesh.SynthesizeBundle(depthmesh.ShapeBrain)
	b.Params.DetailLevel = 12
	b.OriginalImageURL = imageURL
	return &b, nil
}

func setupServer(t *testing.T, an gateway.Analyzer) *httptest.Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	st, err := store.Open(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector("depthmesh", reg, logger)
	svc := convert.New(st, an, depthmesh.Assembler{}, logger, m)
	srv := New(svc, Options{
		Logger:   logger,
		Metrics:  m,
		Gatherer: reg,
		Preview:  render.PreviewOptions{Width: 40, Height: 30, Supersample: 1},
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, owner string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestConversionFlow(t *testing.T) {
	ts := setupServer(t, stubAnalyzer{})

	resp := do(t, http.MethodPost, ts.URL+"/conversions", "alice", createRequest{Title: "My Brain", ImageURL: "https://img/brain.png"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rec := decode[store.ModelRecord](t, resp)
	assert.Equal(t, store.StatusPending, rec.Status)
	base := ts.URL + "/conversions/" + rec.ID.String()

	resp = do(t, http.MethodGet, base+"/export/stl", "alice", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/process", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec = decode[store.ModelRecord](t, resp)
	assert.Equal(t, store.StatusCompleted, rec.Status)

	resp = do(t, http.MethodPost, base+"/process", "alice", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodGet, base+"/export/obj", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="My_Brain_`)
	mesh, err := render.ReadOBJ(resp.Body)
	require.NoError(t, err)
	assert.Greater(t, mesh.TriangleCount(), 0)

	resp = do(t, http.MethodGet, base+"/export/fbx", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, base+"/preview.png?width=32&height=24", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 24, img.Bounds().Dy())

	resp = do(t, http.MethodGet, ts.URL+"/conversions", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]store.ModelRecord](t, resp), 1)

	resp = do(t, http.MethodGet, base, "bob", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = do(t, http.MethodDelete, base, "bob", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = do(t, http.MethodDelete, base, "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, http.MethodGet, base, "alice", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateAndProcessInline(t *testing.T) {
	ts := setupServer(t, stubAnalyzer{})
	resp := do(t, http.MethodPost, ts.URL+"/conversions", "alice", createRequest{ImageURL: "https://img/x.png", Process: true})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rec := decode[store.ModelRecord](t, resp)
	assert.Equal(t, store.StatusCompleted, rec.Status)
}

func TestUpstreamErrorsMapToStatus(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want int
	}{
		{gateway.ErrRateLimited, http.StatusTooManyRequests},
		{gateway.ErrQuotaExhausted, http.StatusPaymentRequired},
		{fmt.Errorf("%w: dial tcp", gateway.ErrUpstreamUnavailable), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	} {
		ts := setupServer(t, stubAnalyzer{err: tc.err})
		resp := do(t, http.MethodPost, ts.URL+"/conversions", "alice", createRequest{ImageURL: "https://img/x.png"})
		rec := decode[store.ModelRecord](t, resp)
		resp = do(t, http.MethodPost, ts.URL+"/conversions/"+rec.ID.String()+"/process", "alice", nil)
		assert.Equal(t, tc.want, resp.StatusCode, tc.err.Error())
		body := decode[errorResponse](t, resp)
		assert.Equal(t, tc.err.Error(), body.Error)

		resp = do(t, http.MethodGet, ts.URL+"/conversions/"+rec.ID.String(), "alice", nil)
		got := decode[store.ModelRecord](t, resp)
		assert.Equal(t, store.StatusFailed, got.Status)
		assert.Equal(t, tc.err.Error(), got.ErrorMessage)
	}
}

func TestRequestValidation(t *testing.T) {
	ts := setupServer(t, stubAnalyzer{})
	resp := do(t, http.MethodPost, ts.URL+"/conversions", "", createRequest{ImageURL: "https://img/x.png"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, http.MethodPost, ts.URL+"/conversions", "alice", createRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/conversions/not-a-uuid", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/conversions", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set(OwnerHeader, "alice")
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := setupServer(t, stubAnalyzer{})
	resp := do(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), `depthmesh_http_requests_total{method="GET",route="GET /healthz",status="200"} 1`)
}
