package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"notes-api/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScripter answers the acquire and release scripts from memory.
// Acquire carries limit and ttl arguments; release carries none.
type fakeScripter struct {
	redis.Scripter

	mu       sync.Mutex
	inflight map[string]int
	err      error
}

func newFakeScripter() *fakeScripter {
	return &fakeScripter{inflight: map[string]int{}}
}

func (f *fakeScripter) EvalSha(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	key := keys[0]
	if len(args) == 0 {
		if f.inflight[key] > 0 {
			f.inflight[key]--
		}
		cmd.SetVal(int64(1))
		return cmd
	}
	if f.inflight[key] >= args[0].(int) {
		cmd.SetVal(int64(0))
		return cmd
	}
	f.inflight[key]++
	cmd.SetVal(int64(1))
	return cmd
}

func (f *fakeScripter) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inflight[key]
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(), CORS())
	r.GET("/", Hello)
	api := r.Group("/api", mw...)
	api.POST("", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": nil}) })
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHelloIgnoresCredentials(t *testing.T) {
	r := newRouter()

	for _, h := range []string{"", "Bearer garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if h != "" {
			req.Header.Set("Authorization", h)
		}
		w := serve(r, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, HelloText, w.Body.String())
	}
}

func TestSecurityHeadersOnEveryRoute(t *testing.T) {
	r := newRouter()

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/", nil),
		httptest.NewRequest(http.MethodPost, "/api", nil),
		httptest.NewRequest(http.MethodGet, "/missing", nil),
	} {
		w := serve(r, req)
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"), req.URL.Path)
		assert.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"), req.URL.Path)
		assert.Equal(t, "max-age=15552000; includeSubDomains", w.Header().Get("Strict-Transport-Security"), req.URL.Path)
		assert.Equal(t, "0", w.Header().Get("X-XSS-Protection"), req.URL.Path)
	}
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	r := newRouter()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://somewhere.example")
	w := serve(r, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	pre := httptest.NewRequest(http.MethodOptions, "/api", nil)
	pre.Header.Set("Origin", "https://somewhere.example")
	pre.Header.Set("Access-Control-Request-Method", http.MethodPost)
	pre.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	w = serve(r, pre)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

const testPrefix = "test:inflight:"

func newCap(t *testing.T, rdb redis.Scripter, limit int) *utils.InflightCap {
	t.Helper()
	limiter, err := utils.NewInflightCap(rdb, testPrefix, limit, time.Minute)
	require.NoError(t, err)
	return limiter
}

func TestConcurrencyCapDisabled(t *testing.T) {
	r := newRouter(ConcurrencyCap(nil))
	w := serve(r, httptest.NewRequest(http.MethodPost, "/api", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConcurrencyCapThrottlesAndReleases(t *testing.T) {
	rdb := newFakeScripter()
	r := newRouter(ConcurrencyCap(newCap(t, rdb, 1)))
	key := testPrefix + "192.0.2.1"

	w := serve(r, httptest.NewRequest(http.MethodPost, "/api", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, rdb.count(key))

	rdb.inflight[key] = 1
	w = serve(r, httptest.NewRequest(http.MethodPost, "/api", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"errors":[{"message":"too many requests in flight","extensions":{"code":"TOO_MANY_REQUESTS"}}]}`, w.Body.String())
	assert.Equal(t, 1, rdb.count(key))
}

func TestConcurrencyCapFailsOpen(t *testing.T) {
	rdb := newFakeScripter()
	rdb.err = errors.New("connection refused")
	r := newRouter(ConcurrencyCap(newCap(t, rdb, 1)))

	w := serve(r, httptest.NewRequest(http.MethodPost, "/api", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var down error
	r := gin.New()
	r.GET("/healthz", Health(func(context.Context) error { return down }))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	down = errors.New("db ping failed")
	w = serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
