package common_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-kasir/internal/common"
)

func newIdem(t *testing.T) (common.Idem, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return common.Idem{R: client, TTL: time.Hour}, mr
}

func post(h http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/settlements", strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	idem, mr := newIdem(t)
	var calls atomic.Int32
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		common.Data(w, http.StatusCreated, map[string]any{"call": n})
	}))

	first := post(h, "k-1")
	require.Equal(t, http.StatusCreated, first.Code)

	second := post(h, "k-1")
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	require.JSONEq(t, first.Body.String(), second.Body.String())
	require.Equal(t, int32(1), calls.Load())
	require.Len(t, mr.Keys(), 1)

	third := post(h, "k-2")
	require.Equal(t, http.StatusCreated, third.Code)
	require.Equal(t, int32(2), calls.Load())
}

func TestIdempotencyWithoutKeyPassesThrough(t *testing.T) {
	idem, mr := newIdem(t)
	var calls atomic.Int32
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))

	post(h, "")
	post(h, "")
	require.Equal(t, int32(2), calls.Load())
	require.Empty(t, mr.Keys())
}

func TestIdempotencyPendingKeyConflicts(t *testing.T) {
	idem, _ := newIdem(t)
	var inner *httptest.ResponseRecorder
	var h http.Handler
	h = idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = post(h, "same")
		common.Data(w, http.StatusCreated, map[string]any{"ok": true})
	}))

	outer := post(h, "same")
	require.Equal(t, http.StatusCreated, outer.Code)
	require.Equal(t, http.StatusConflict, inner.Code)
	require.Contains(t, inner.Body.String(), "IDEMPOTENT_REPLAY")
}

func TestIdempotencyDoesNotCacheServerErrors(t *testing.T) {
	idem, mr := newIdem(t)
	var calls atomic.Int32
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "boom", nil)
			return
		}
		common.Data(w, http.StatusCreated, map[string]any{"ok": true})
	}))

	require.Equal(t, http.StatusInternalServerError, post(h, "retry").Code)
	require.Empty(t, mr.Keys())
	require.Equal(t, http.StatusCreated, post(h, "retry").Code)
	require.Equal(t, int32(2), calls.Load())
}

func TestIdempotencyCachesClientErrors(t *testing.T) {
	idem, _ := newIdem(t)
	var calls atomic.Int32
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", "insufficient stock", nil)
	}))

	require.Equal(t, http.StatusConflict, post(h, "k").Code)
	replay := post(h, "k")
	require.Equal(t, http.StatusConflict, replay.Code)
	require.Contains(t, replay.Body.String(), "INSUFFICIENT_STOCK")
	require.Equal(t, int32(1), calls.Load())
}
