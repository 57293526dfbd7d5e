package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"agora/internal/config"
	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:                  "test",
		JWTSecret:            "test-secret-that-is-long-enough-for-hs256",
		JWTIssuer:            "agora-api",
		JWTAudience:          "agora-client",
		ImageUploadDir:       t.TempDir(),
		ImageMaxUploadSizeMB: 10,
		FeatureFlags:         "image_uploads=on,realtime_stream=on",
	}
}

// newTestServer builds a fully wired server over an in-memory database.
// rdb may be nil.
func newTestServer(t *testing.T, rdb *redis.Client) (*Server, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	s, err := NewServerWithDeps(testConfig(t), db, rdb)
	require.NoError(t, err)
	return s, db
}

// accessToken signs an access token for user.
func accessToken(t *testing.T, s *Server, user *models.User) string {
	t.Helper()
	tok, err := s.auth.Issue(user.ID, user.Username, middleware.AccessToken)
	require.NoError(t, err)
	return tok
}

// doRequest sends a JSON request through the app. body may be nil.
func doRequest(t *testing.T, app *fiber.App, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthChecks(t *testing.T) {
	s, _ := newTestServer(t, nil)
	app := s.App()

	resp := doRequest(t, app, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeJSON[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "disabled", checks["redis"])
	assert.Equal(t, "local", body["storage"])
	assert.Equal(t, []any{"engagement hub"}, body["event_sinks"])
}

func TestReadinessCheck_WithRedis(t *testing.T) {
	_, rdb := testutil.NewTestRedis(t)
	s, _ := newTestServer(t, rdb)

	resp := doRequest(t, s.App(), http.MethodGet, "/api/", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeJSON[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["checks"].(map[string]any)["redis"])
	assert.Equal(t, []any{"redis"}, body["event_sinks"])
}

func TestFeatureFlags(t *testing.T) {
	s, db := newTestServer(t, nil)
	s.featureFlags = featureflags.NewManager("realtime_stream=0%,search_v2=on")
	user := testutil.CreateUser(t, db, "flagger")

	resp := doRequest(t, s.App(), http.MethodGet, "/api/feature-flags", accessToken(t, s, user), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeJSON[struct {
		Flags []featureflags.State `json:"flags"`
	}](t, resp)
	assert.Equal(t, []featureflags.State{
		{Name: "image_uploads", Rule: "on", Enabled: true},
		{Name: "realtime_stream", Rule: "0%", Enabled: false},
		{Name: "search_v2", Rule: "on", Enabled: true},
	}, body.Flags)
}

func TestUnknownRouteReturns404(t *testing.T) {
	s, _ := newTestServer(t, nil)
	resp := doRequest(t, s.App(), http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
