package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_BurstThenRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemory(10, 200*time.Millisecond, 10*time.Minute)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		ok, _, err := m.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, ok, "request %d", i)
	}
	ok, retry, _ := m.Allow(ctx, "1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, 200*time.Millisecond, retry)

	// другой клиент не затронут
	ok, _, _ = m.Allow(ctx, "5.6.7.8")
	assert.True(t, ok)

	now = now.Add(200 * time.Millisecond)
	ok, _, _ = m.Allow(ctx, "1.2.3.4")
	assert.True(t, ok)
	ok, _, _ = m.Allow(ctx, "1.2.3.4")
	assert.False(t, ok)
}

func TestMemory_SweepEvictsIdle(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemory(10, 200*time.Millisecond, 10*time.Minute)
	m.now = func() time.Time { return now }

	_, _, _ = m.Allow(context.Background(), "a")
	now = now.Add(5 * time.Minute)
	_, _, _ = m.Allow(context.Background(), "b")
	assert.Equal(t, 2, m.Len())

	now = now.Add(6 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
}

type denyAll struct{ err error }

func (d denyAll) Allow(context.Context, string) (bool, time.Duration, error) {
	return false, 1500 * time.Millisecond, d.err
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware(denyAll{}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "Too many requests")

	// ошибка лимитера пропускает запрос
	r = gin.New()
	r.Use(Middleware(denyAll{err: errors.New("redis down")}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRedis_TokenBucket(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	key := "test-" + time.Now().Format("150405.000000")
	l := NewRedis(client, 3, time.Minute, time.Minute)
	t.Cleanup(func() { client.Del(ctx, l.prefix+key) })

	for i := 0; i < 3; i++ {
		ok, _, err := l.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, retry, err := l.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)
}
