package cache

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticConnectivity bool

func (c staticConnectivity) Online() bool { return bool(c) }

func newTestEngine(t *testing.T, originURL string, online Connectivity) *Engine {
	t.Helper()
	e, err := New(&Config{
		StorageDir: t.TempDir(),
		Generation: "v1",
		OriginURL:  originURL,
		APIRoot:    "/api",
		TTL: NewTTLRegistry([]Rule{
			{Prefix: "/api/competitors", TTL: 5 * time.Minute},
		}, time.Minute),
		SkipWaiting:  true,
		Connectivity: online,
	})
	require.NoError(t, err)
	require.NoError(t, e.Install())
	return e
}

func jsonOrigin(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		res.Header().Set("Content-Type", "application/json")
		res.Write([]byte(body))
	}))
}

func decodeOffline(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestServeReadCachesSuccessfulGet(t *testing.T) {
	assert := assert.New(t)
	origin := jsonOrigin(t, `[{"id":5}]`)
	defer origin.Close()
	e := newTestEngine(t, origin.URL, staticConnectivity(true))

	rec := httptest.NewRecorder()
	e.ServeRead(rec, httptest.NewRequest(http.MethodGet, "/api/competitors", nil))

	assert.Equal(http.StatusOK, rec.Code)
	assert.JSONEq(`[{"id":5}]`, rec.Body.String())
	// the live response is relayed without the synthetic stamp
	assert.Empty(rec.Header().Get(StampHeader))

	entry, ok := e.runtime.Get("GET /api/competitors")
	require.True(t, ok)
	_, stamped := entry.StampedAt()
	assert.True(stamped)
}

func TestServeReadDoesNotCacheErrorStatus(t *testing.T) {
	assert := assert.New(t)
	origin := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		http.Error(res, "boom", http.StatusInternalServerError)
	}))
	defer origin.Close()
	e := newTestEngine(t, origin.URL, staticConnectivity(true))

	rec := httptest.NewRecorder()
	e.ServeRead(rec, httptest.NewRequest(http.MethodGet, "/api/competitors", nil))

	// upstream HTTP errors relay verbatim, they are not network failures
	assert.Equal(http.StatusInternalServerError, rec.Code)
	assert.Equal(0, e.runtime.Len())
}

func TestServeReadFallsBackToFreshCache(t *testing.T) {
	assert := assert.New(t)
	origin := jsonOrigin(t, `[{"id":5}]`)
	e := newTestEngine(t, origin.URL, staticConnectivity(true))

	e.ServeRead(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/competitors", nil))
	origin.Close()

	e.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	rec := httptest.NewRecorder()
	e.ServeRead(rec, httptest.NewRequest(http.MethodGet, "/api/competitors", nil))

	assert.Equal(http.StatusOK, rec.Code)
	assert.JSONEq(`[{"id":5}]`, rec.Body.String())
	// the cached copy carries the stamp it was stored with
	assert.NotEmpty(rec.Header().Get(StampHeader))
}

func TestServeReadRefusesExpiredWhileOnline(t *testing.T) {
	assert := assert.New(t)
	origin := jsonOrigin(t, `[{"id":5}]`)
	e := newTestEngine(t, origin.URL, staticConnectivity(true))

	e.ServeRead(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/competitors", nil))
	origin.Close()

	e.now = func() time.Time { return time.Now().Add(6 * time.Minute) }
	rec := httptest.NewRecorder()
	e.ServeRead(rec, httptest.NewRequest(http.MethodGet, "/api/competitors", nil))

	assert.Equal(http.StatusServiceUnavailable, rec.Code)
	assert.Equal("Offline", decodeOffline(t, rec))
}

func TestServeReadServesExpiredWhileOffline(t *testing.T) {
	assert := assert.New(t)
	origin := jsonOrigin(t, `[{"id":5}]`)
	e := newTestEngine(t, origin.URL, staticConnectivity(false))

	e.ServeRead(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/competitors", nil))
	origin.Close()

	e.now = func() time.Time { return time.Now().Add(6 * time.Minute) }
	rec := httptest.NewRecorder()
	e.ServeRead(rec, httptest.NewRequest(http.MethodGet, "/api/competitors", nil))

	assert.Equal(http.StatusOK, rec.Code)
	assert.JSONEq(`[{"id":5}]`, rec.Body.String())
}

func TestServeReadNoCacheReturnsOfflineError(t *testing.T) {
	assert := assert.New(t)
	origin := jsonOrigin(t, `{}`)
	e := newTestEngine(t, origin.URL, staticConnectivity(true))
	origin.Close()

	rec := httptest.NewRecorder()
	e.ServeRead(rec, httptest.NewRequest(http.MethodGet, "/api/competitors", nil))

	assert.Equal(http.StatusServiceUnavailable, rec.Code)
	assert.Equal("application/json", rec.Header().Get("Content-Type"))
	assert.Equal("Offline", decodeOffline(t, rec))
}

func TestServeAssetCacheFirst(t *testing.T) {
	assert := assert.New(t)
	hits := 0
	origin := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		hits++
		res.Write([]byte("<html>shell</html>"))
	}))
	e := newTestEngine(t, origin.URL, staticConnectivity(true))

	rec := httptest.NewRecorder()
	e.ServeAsset(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal(1, hits)
	assert.Equal(1, e.static.Len())

	origin.Close()

	rec = httptest.NewRecorder()
	e.ServeAsset(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal("<html>shell</html>", rec.Body.String())
	assert.Equal(1, hits, "cache hit must not consult the network")
}

func TestServeAssetMissWithoutNetwork(t *testing.T) {
	assert := assert.New(t)
	origin := jsonOrigin(t, `{}`)
	e := newTestEngine(t, origin.URL, staticConnectivity(true))
	origin.Close()

	rec := httptest.NewRecorder()
	e.ServeAsset(rec, httptest.NewRequest(http.MethodGet, "/missing.js", nil))

	assert.Equal(http.StatusServiceUnavailable, rec.Code)
	assert.Equal("Offline", rec.Body.String())
}

func TestServeWriteInvalidatesRelatedReads(t *testing.T) {
	assert := assert.New(t)
	origin := jsonOrigin(t, `{"ok":true}`)
	defer origin.Close()
	e := newTestEngine(t, origin.URL, staticConnectivity(true))

	e.ServeRead(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/competitors/5/dimensions", nil))
	e.ServeRead(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/competitors/7", nil))
	require.Equal(t, 2, e.runtime.Len())

	rec := httptest.NewRecorder()
	e.ServeWrite(rec, httptest.NewRequest(http.MethodPut, "/api/competitors/5", nil))
	assert.Equal(http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		_, ok := e.runtime.Get("GET /api/competitors/5/dimensions")
		return !ok
	}, time.Second, 10*time.Millisecond, "mutation must purge reads under its related prefix")

	_, ok := e.runtime.Get("GET /api/competitors/7")
	assert.True(ok, "unrelated reads survive a mutation")
}

func TestServeWriteWithoutNetwork(t *testing.T) {
	assert := assert.New(t)
	origin := jsonOrigin(t, `{}`)
	e := newTestEngine(t, origin.URL, staticConnectivity(true))
	origin.Close()

	rec := httptest.NewRecorder()
	e.ServeWrite(rec, httptest.NewRequest(http.MethodDelete, "/api/competitors/5", nil))

	assert.Equal(http.StatusServiceUnavailable, rec.Code)
	assert.Equal("Offline", decodeOffline(t, rec))
}
