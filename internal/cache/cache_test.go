package cache

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wekraft/gitpilot/internal/monitoring"
)

func TestCacheSetGet(t *testing.T) {
	c := NewCache(time.Minute)

	c.Set("key", []byte("value"))

	data, found := c.Get("key")
	require.True(t, found)
	assert.Equal(t, []byte("value"), data)

	_, found = c.Get("missing")
	assert.False(t, found)
}

func TestCacheExpiration(t *testing.T) {
	c := NewCache(10 * time.Millisecond)

	c.Set("key", []byte("value"))
	time.Sleep(20 * time.Millisecond)

	_, found := c.Get("key")
	assert.False(t, found)
}

func TestCacheDeleteAndClear(t *testing.T) {
	c := NewCache(time.Minute)

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	assert.Equal(t, 2, c.Size())

	c.Delete("a")
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestCacheStats(t *testing.T) {
	c := NewCache(time.Minute)
	c.Set("a", []byte("1"))

	stats := c.Stats()
	assert.Equal(t, 1, stats["total_items"])
	assert.Equal(t, 1, stats["active_items"])
	assert.Equal(t, 0, stats["expired_items"])
}

func TestCacheable(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodPost, "/api/v1/impact", true},
		{http.MethodPost, "/api/v1/projects/abc/health", true},
		{http.MethodGet, "/api/v1/impact", false},
		{http.MethodPost, "/api/v1/projects", false},
		{http.MethodGet, "/health", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cacheable(tt.method, tt.path), "%s %s", tt.method, tt.path)
	}
}

func TestMiddlewareCachesIdenticalRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c := NewCache(time.Minute)
	calls := 0

	r := gin.New()
	r.Use(c.Middleware(monitoring.NewMetrics()))
	r.POST("/impact", func(ctx *gin.Context) {
		calls++
		ctx.JSON(http.StatusOK, gin.H{"calls": calls})
	})

	do := func(body string) *httptest.ResponseRecorder {
		req, err := http.NewRequest(http.MethodPost, "/impact", strings.NewReader(body))
		require.NoError(t, err)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w1 := do(`{"username":"devone"}`)
	w2 := do(`{"username":"devone"}`)

	require.Equal(t, http.StatusOK, w1.Code)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, 1, calls)
	assert.Equal(t, w1.Body.String(), w2.Body.String())

	// A different payload gets its own entry
	w3 := do(`{"username":"devtwo"}`)
	require.Equal(t, http.StatusOK, w3.Code)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, c.Size())
}

func TestMiddlewareSkipsErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c := NewCache(time.Minute)

	r := gin.New()
	r.Use(c.Middleware(monitoring.NewMetrics()))
	r.POST("/impact", func(ctx *gin.Context) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "bad input"})
	})

	req, err := http.NewRequest(http.MethodPost, "/impact", strings.NewReader(`{}`))
	require.NoError(t, err)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, c.Size())
}
