package core

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridpulse/internal/config"
	"gridpulse/internal/store"
	"gridpulse/internal/types"
)

// mockArtifacts serves canned bytes per artifact name.
type mockArtifacts struct {
	artifacts map[string][]byte
}

func (m *mockArtifacts) ReadArtifact(name string) ([]byte, error) {
	if raw, ok := m.artifacts[name]; ok {
		return raw, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundArtifact,
		"artifact "+name+" has not been produced yet", nil)
}

func newTestServer(t *testing.T, artifacts map[string][]byte) *Server {
	t.Helper()
	cfg := &config.Config{Service: "gridpulse", Environment: "local"}
	s, err := NewServer(cfg, &mockArtifacts{artifacts: artifacts}, nil)
	require.NoError(t, err)
	return s
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(nil, &mockArtifacts{}, nil)
	require.Error(t, err)

	_, err = NewServer(&config.Config{}, nil, nil)
	require.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doRequest(s, http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "gridpulse", body.Service)
}

func TestCorrelationsEndpointWrapsArtifact(t *testing.T) {
	s := newTestServer(t, map[string][]byte{
		store.CorrelationsArtifact: []byte(`{"Austin":{"pearson_correlation":0.9,"r_squared":0.81}}`),
	})

	rec := doRequest(s, http.MethodGet, "/v1/analytics/correlations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope struct {
		Data map[string]types.CityCorrelation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 0.9, envelope.Data["Austin"].PearsonCorrelation)
}

func TestMissingArtifactIs404(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(s, http.MethodGet, "/v1/analytics/summary")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var envelope APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, string(types.ErrCodeNotFoundArtifact), envelope.Error.Code)
	assert.NotEmpty(t, envelope.Error.RequestID)
}

func TestHeatmapEndpointServesCSV(t *testing.T) {
	csvBody := "city,temp_range,day_type,mean_demand_mwh\nAustin,>90°F,Weekday,24000\n"
	s := newTestServer(t, map[string][]byte{
		store.HeatmapArtifact: []byte(csvBody),
	})

	rec := doRequest(s, http.MethodGet, "/v1/analytics/heatmap")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, csvBody, rec.Body.String())
}

func TestQualityReportEndpoint(t *testing.T) {
	s := newTestServer(t, map[string][]byte{
		store.QualityReportArtifact: []byte(`{"run_id":"run-1","total_rows":4}`),
	})

	rec := doRequest(s, http.MethodGet, "/v1/quality/report")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data types.QualityReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "run-1", envelope.Data.RunID)
	assert.Equal(t, 4, envelope.Data.TotalRows)
}

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "caller-supplied")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "caller-supplied", rec.Header().Get("X-Request-Id"))

	// Without a caller-supplied ID one is generated.
	rec2 := doRequest(s, http.MethodGet, "/health")
	assert.NotEmpty(t, rec2.Header().Get("X-Request-Id"))
}
