package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fpshield/core"
	"fpshield/models"
)

// memConfigSource keeps the configuration in memory so handler tests need
// no database.
type memConfigSource struct {
	mu  sync.Mutex
	cfg models.Config
	set bool
}

func (s *memConfigSource) LoadConfig() (models.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		s.cfg = models.DefaultConfig()
		s.set = true
	}
	return s.cfg, nil
}

func (s *memConfigSource) SaveConfig(cfg models.Config) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.set = true
	return true, nil
}

func newTestState(t *testing.T) *core.State {
	t.Helper()
	st := core.NewState(&memConfigSource{}, core.StateOptions{
		RefreshTTL: time.Hour,
	})
	require.NoError(t, st.Hub.Refresh())
	return st
}

func newTestRouter(st *core.State) chi.Router {
	r := chi.NewRouter()
	RegisterConfigRoutes(r, st)
	RegisterAllowlistRoutes(r, st)
	RegisterBypassRoutes(r, st)
	RegisterFeatureRoutes(r, st)
	RegisterProxyRoutes(r, st)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestChallengeDetectedHandler(t *testing.T) {
	st := newTestState(t)
	r := newTestRouter(st)

	rec := doJSON(t, r, http.MethodPost, "/bypass/challenge-detected",
		map[string]string{"hostname": "example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.DetectResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.False(t, resp.Ignored)

	// Duplicate detection inside the TTL is acknowledged as ignored.
	rec = doJSON(t, r, http.MethodPost, "/bypass/challenge-detected",
		map[string]string{"hostname": "example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Ignored)

	rec = doJSON(t, r, http.MethodPost, "/bypass/challenge-detected",
		map[string]string{"hostname": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckBypassStatusHandler(t *testing.T) {
	st := newTestState(t)
	r := newTestRouter(st)

	_, err := st.Bypass.Detect("example.com")
	require.NoError(t, err)

	rec := doJSON(t, r, http.MethodGet, "/bypass/status?hostname=sub.example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.BypassStatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Skip)
	assert.Equal(t, "example.com", resp.MatchedDomain)
	assert.Greater(t, resp.RemainingSeconds, 0)

	rec = doJSON(t, r, http.MethodGet, "/bypass/status?hostname=other.net", nil)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Skip)

	// Challenge infrastructure is always skipped, bypass or not.
	rec = doJSON(t, r, http.MethodGet, "/bypass/status?hostname=challenges.cloudflare.com", nil)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Skip)
}

func TestAllowlistHandlers(t *testing.T) {
	st := newTestState(t)
	r := newTestRouter(st)

	rec := doJSON(t, r, http.MethodPost, "/allowlist/add",
		map[string]string{"domain": "https://example.com/page"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.AllowlistResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "*.example.com", resp.Allowlist)
	assert.Equal(t, "*.example.com", st.Config().GlobalAllowlist)

	// Per-feature variant.
	rec = doJSON(t, r, http.MethodPost, "/allowlist/add",
		map[string]string{"domain": "trusted.org", "feature": models.FeatureCanvas})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*.trusted.org", st.Config().Canvas.Allowlist)

	rec = doJSON(t, r, http.MethodPost, "/allowlist/remove",
		map[string]string{"domain": "example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", st.Config().GlobalAllowlist)

	rec = doJSON(t, r, http.MethodPost, "/allowlist/add",
		map[string]string{"domain": "x.com", "feature": "telepathy"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfigHandlers(t *testing.T) {
	st := newTestState(t)
	r := newTestRouter(st)

	rec := doJSON(t, r, http.MethodGet, "/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.ConfigResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.True(t, got.Config.Enabled)

	update := got.Config
	update.Canvas.NoiseLevel = 0.9
	rec = doJSON(t, r, http.MethodPut, "/config", models.ConfigResponse{Config: update})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.9, st.Config().Canvas.NoiseLevel)

	rec = doJSON(t, r, http.MethodPost, "/config/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.1, st.Config().Canvas.NoiseLevel)
}

func TestTabNavigatedHandler(t *testing.T) {
	st := newTestState(t)
	r := newTestRouter(st)

	st.Ledger.Record(5, "example.com", "canvas")

	rec := doJSON(t, r, http.MethodPost, "/tabs/5/navigated",
		map[string]string{"url": "https://other.net/"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success         bool   `json:"success"`
		CancelAndReplay bool   `json:"cancelAndReplay"`
		EgressMode      string `json:"egressMode"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.False(t, resp.CancelAndReplay)
	assert.Equal(t, "direct", resp.EgressMode)

	// Cross-domain navigation reset the ledger entry.
	assert.Empty(t, st.Ledger.Features(5))

	rec = doJSON(t, r, http.MethodPost, "/tabs/notanumber/navigated",
		map[string]string{"url": "https://other.net/"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggeredFeaturesHandler(t *testing.T) {
	st := newTestState(t)
	r := newTestRouter(st)

	st.Ledger.Record(9, "example.com", "webgl")

	rec := doJSON(t, r, http.MethodGet, "/tabs/9/features", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.TriggeredFeaturesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []string{"webgl"}, resp.Features)
}

func TestProxyProfileHandlers(t *testing.T) {
	st := newTestState(t)
	r := newTestRouter(st)

	rec := doJSON(t, r, http.MethodPost, "/proxy/profiles", models.ProxyProfile{
		Name: "NYC", Host: "10.0.0.1", Port: 1080, Scheme: models.SchemeSOCKS5,
		Location: &models.GeoInfo{Country: "US", City: "New York"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	stored := st.Config()
	require.NotNil(t, stored.Proxy.ProfileByName("NYC"))

	rec = doJSON(t, r, http.MethodPost, "/proxy/routes",
		models.Route{Pattern: "*.example.com", Profile: "NYC"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/proxy/routes",
		models.Route{Pattern: "*.other.org", Profile: "nowhere"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/proxy/profiles/remove",
		map[string]string{"name": "NYC"})
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := st.Config()
	assert.Nil(t, cfg.Proxy.ProfileByName("NYC"))
	assert.Empty(t, cfg.Proxy.Routes, "routes cascade with the profile")

	rec = doJSON(t, r, http.MethodPost, "/proxy/profiles", models.ProxyProfile{
		Name: "bad", Host: "", Port: 0, Scheme: "carrier-pigeon",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
