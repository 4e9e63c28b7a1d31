package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stakehub/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skip("Redis not available")
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestIdempotencyMiddleware_ConcurrentRequests(t *testing.T) {
	rdb := redisClient(t)
	mw := NewIdempotencyMiddleware(rdb, 10*time.Second, logger.NewNop())

	var calls atomic.Int32
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"reward":"1.94"}`))
	})
	wrapped := mw.Require(slow)
	key := uuid.NewString()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(delay time.Duration) {
			defer wg.Done()
			time.Sleep(delay)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/pools/p/claim-reward", nil)
			req.Header.Set("Idempotency-Key", key)
			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"reward":"1.94"}`, w.Body.String())
		}(time.Duration(i) * 100 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotencyMiddleware_RequiresKey(t *testing.T) {
	mw := NewIdempotencyMiddleware(nil, time.Second, logger.NewNop())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	w := httptest.NewRecorder()
	mw.Require(next).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/pools", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	mw.Require(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/pools/p", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
