package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mstgnz/hyperpay/infra/conn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	readyErr error
	state    string
}

func (g *fakeGateway) Ready(context.Context) error { return g.readyErr }
func (g *fakeGateway) BreakerState() string { return g.state }
func (g *fakeGateway) Mode() string { return "test" }

func healthData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	data, ok := decodeResponse(t, rec).Data.(map[string]any)
	require.True(t, ok)
	return data
}

func TestNewHealthHandler(t *testing.T) {
	h := NewHealthHandler(nil, nil, "test")
	require.NotNil(t, h)
	assert.False(t, h.startTime.IsZero())
}

func TestHealthHandler_HealthyGateway(t *testing.T) {
	db, err := conn.Open(filepath.Join(t.TempDir(), "health.db"))
	require.NoError(t, err)
	t.Cleanup(db.CloseDatabase)

	h := NewHealthHandler(db.DB, &fakeGateway{state: "closed"}, "test")
	rec := httptest.NewRecorder()
	h.CheckHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	data := healthData(t, rec)
	database := data["database"].(map[string]any)
	assert.Equal(t, true, database["connected"])
	assert.NotEmpty(t, database["version"])

	gateway := data["gateway"].(map[string]any)
	assert.Equal(t, "healthy", gateway["status"])
	assert.Equal(t, "closed", gateway["circuit_state"])
	assert.Equal(t, "test", gateway["mode"])
}

func TestHealthHandler_OpenCircuitIsUnhealthy(t *testing.T) {
	h := NewHealthHandler(nil, &fakeGateway{state: "open", readyErr: errors.New("circuit breaker is open")}, "test")
	rec := httptest.NewRecorder()
	h.CheckHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	data := healthData(t, rec)
	assert.Equal(t, "unhealthy", data["status"])

	gateway := data["gateway"].(map[string]any)
	assert.Equal(t, "open", gateway["circuit_state"])
	assert.Equal(t, "circuit breaker is open", gateway["error"])
}

func TestHealthHandler_NotConfigured(t *testing.T) {
	h := NewHealthHandler(nil, nil, "development")
	rec := httptest.NewRecorder()
	h.CheckHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	data := healthData(t, rec)
	assert.Equal(t, "degraded", data["status"])
	assert.Equal(t, "development", data["environment"])
	assert.Equal(t, "not_configured", data["gateway"].(map[string]any)["status"])
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KB", formatBytes(1024))
	assert.Equal(t, "1.5 MB", formatBytes(1536*1024))
}
