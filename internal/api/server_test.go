package api

import (
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/worldgen/internal/persistence"
	"github.com/talgya/worldgen/internal/world"
)

func newServer() *Server {
	return &Server{Base: world.SmallTestConfig(), AdminKey: "secret"}
}

func do(t *testing.T, h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	h := newServer().Handler()
	rec := do(t, h, http.MethodGet, "/api/v1/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "worldgen", body["name"])
	assert.EqualValues(t, 0, body["generations"])
	assert.NotContains(t, body, "last")
}

func TestGenerateAndCell(t *testing.T) {
	s := newServer()
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/cell/0", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/generate", `{"count": 80, "seed": 9}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sum world.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 80, sum.Cells)
	assert.Equal(t, uint64(9), sum.Seed)
	assert.EqualValues(t, 1, s.generations.Load())

	rec = do(t, h, http.MethodGet, "/api/v1/cell/3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cell map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cell))
	assert.EqualValues(t, 3, cell["id"])
	assert.Equal(t, sum.ID, cell["world"])
	assert.Equal(t, "classified", cell["state"])

	for _, id := range []string{"80", "-1", "abc"} {
		rec = do(t, h, http.MethodGet, "/api/v1/cell/"+id, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, id)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/status", "", nil)
	assert.Contains(t, rec.Body.String(), `"last"`)
}

func TestGenerateErrors(t *testing.T) {
	h := newServer().Handler()
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"count":`, http.StatusBadRequest},
		{"unknown field", `{"colour": "red"}`, http.StatusBadRequest},
		{"invalid parameter", `{"count": 0}`, http.StatusBadRequest},
		{"too many cells", `{"count": 1000000}`, http.StatusBadRequest},
		{"too many pixels", `{"width": 4096, "height": 4096}`, http.StatusBadRequest},
		{"degenerate", `{"count": 2}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/generate", tt.body, nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRaster(t *testing.T) {
	h := newServer().Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/raster.png?width=32&height=16&seed=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-World-Id"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())

	rec = do(t, h, http.MethodGet, "/api/v1/raster.png?view=elevation&width=8&height=8", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/raster.png?view=graph&width=48&height=48", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	img, err = png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 48, img.Bounds().Dx())

	rec = do(t, h, http.MethodGet, "/api/v1/raster.png?view=heat", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/v1/raster.png?seed=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/v1/raster.png?count=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSnapshot(t *testing.T) {
	s := newServer()
	h := s.Handler()
	auth := map[string]string{"Authorization": "Bearer secret"}

	rec := do(t, h, http.MethodPost, "/api/v1/snapshot", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/v1/snapshot", "", map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/snapshot", "", auth)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	db, err := persistence.Open(filepath.Join(t.TempDir(), "snap.db"))
	require.NoError(t, err)
	defer db.Close()
	s.DB = db

	rec = do(t, h, http.MethodPost, "/api/v1/snapshot", "", auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/generate", `{}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/v1/snapshot", "", auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	id, err := db.GetMeta("run_id")
	require.NoError(t, err)
	assert.Equal(t, s.lastWorld().ID, id)

	disabled := (&Server{Base: world.SmallTestConfig()}).Handler()
	rec = do(t, disabled, http.MethodPost, "/api/v1/snapshot", "", auth)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGenerateRateLimited(t *testing.T) {
	s := newServer()
	s.RateLimit = 2
	h := s.Handler()
	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodPost, "/api/v1/generate", `{}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/api/v1/generate", `{}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// A forged X-Forwarded-For from an untrusted peer does not buy a new budget.
	rec = do(t, h, http.MethodPost, "/api/v1/generate", `{}`, map[string]string{"X-Forwarded-For": "203.0.113.8"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestGenerateRateLimitedBehindProxy(t *testing.T) {
	s := newServer()
	s.RateLimit = 1
	proxies, err := ParseProxies("192.0.2.0/24")
	require.NoError(t, err)
	s.TrustedProxies = proxies
	h := s.Handler()

	// httptest requests come from 192.0.2.1, so the header names the client.
	a := map[string]string{"X-Forwarded-For": "203.0.113.7"}
	rec := do(t, h, http.MethodPost, "/api/v1/generate", `{}`, a)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/v1/generate", `{}`, a)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/generate", `{}`, map[string]string{"X-Forwarded-For": "203.0.113.8"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	h := newServer().Handler()
	rec := do(t, h, http.MethodOptions, "/api/v1/status", "", map[string]string{"Origin": "http://localhost:5173"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodGet, "/api/v1/status", "", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	s := newServer()
	s.Origins = []string{"https://maps.example"}
	rec = do(t, s.Handler(), http.MethodGet, "/api/v1/status", "", map[string]string{"Origin": "https://maps.example"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://maps.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}
