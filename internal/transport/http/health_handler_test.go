package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/infrastructure"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/services"
	"github.com/xingfanxia/iron-condor-combo-finder/pkg/contracts"
)

type stubHealth struct {
	ready bool
}

func (s stubHealth) HealthCheck(ctx context.Context) services.HealthStatus {
	return services.HealthStatus{Status: services.StatusOK, Timestamp: time.Now(), Version: contracts.Version}
}

func (s stubHealth) ReadinessCheck(ctx context.Context) services.HealthStatus {
	status := services.HealthStatus{
		Status:   services.StatusReady,
		Services: map[string]services.ServiceHealth{"market_data": {Status: services.StatusReady}},
	}
	if !s.ready {
		status.Status = services.StatusNotReady
		status.Services["market_data"] = services.ServiceHealth{Status: services.StatusNotReady, Message: "no market data source configured"}
	}
	return status
}

func (s stubHealth) LivenessCheck(ctx context.Context) services.HealthStatus {
	return services.HealthStatus{
		Status:  services.StatusAlive,
		Runtime: &infrastructure.RuntimeStats{GoRoutines: 12},
	}
}

func (s stubHealth) Version() contracts.VersionInfo {
	return contracts.GetVersionInfo()
}

func newHealthRouter(ready bool) http.Handler {
	h := NewHealthHandler(stubHealth{ready: ready}, quietLogger())
	r := chi.NewRouter()
	r.Mount("/api/health", h.Routes())
	r.Get("/api/version", h.Version)
	return r
}

func TestHealthHandler_HealthCheck(t *testing.T) {
	w := serve(t, newHealthRouter(true), http.MethodGet, "/api/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, services.StatusOK, decodeBody(t, w)["status"])
}

func TestHealthHandler_ReadinessCheck(t *testing.T) {
	tests := []struct {
		name   string
		ready  bool
		status int
		want   string
	}{
		{"ready", true, http.StatusOK, services.StatusReady},
		{"not ready", false, http.StatusServiceUnavailable, services.StatusNotReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, newHealthRouter(tt.ready), http.MethodGet, "/api/health/ready", "")

			assert.Equal(t, tt.status, w.Code)
			var body services.HealthStatus
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.Status)
			assert.Contains(t, body.Services, "market_data")
		})
	}
}

func TestHealthHandler_LivenessCheck(t *testing.T) {
	w := serve(t, newHealthRouter(true), http.MethodGet, "/api/health/live", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body services.HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, services.StatusAlive, body.Status)
	require.NotNil(t, body.Runtime)
	assert.EqualValues(t, 12, body.Runtime.GoRoutines)
}

func TestHealthHandler_Version(t *testing.T) {
	w := serve(t, newHealthRouter(true), http.MethodGet, "/api/version", "")

	require.Equal(t, http.StatusOK, w.Code)
	var info contracts.VersionInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, contracts.Version, info.Version)
	assert.Equal(t, contracts.APIVersion, info.APIVersion)
}
