package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/HomePanel/backend/internal/infrastructure/config"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Shell.Transport = "local"
	cfg.Provision.BaseDir = filepath.Join(dir, "servers")
	cfg.Provision.InventoryPath = filepath.Join(dir, "gameservers.json")
	cfg.RateLimit.Enabled = false
	return cfg
}

func newTestServer(t *testing.T) *Server {
	srv, err := NewServer(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func TestServerRoutes(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.EqualValues(t, 0, health["sessions"])

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/provision/status/missing", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"phase":"unknown"`)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "homepanel_http_requests_total")
}

func TestServerRejectsUnknownProvisionType(t *testing.T) {
	srv := newTestServer(t)

	body := strings.NewReader(`{"type":"factorio","name":"base","port":34197}`)
	req := httptest.NewRequest(http.MethodPost, "/provision/create", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown server type")
}

func TestServerBadCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Provision.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewServer(cfg)
	assert.ErrorContains(t, err, "server catalog")
}
