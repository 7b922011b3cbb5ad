package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/health"
	"github.com/noah-isme/backend-kasir/internal/store"
)

type stubChecker struct {
	storeErr error
	redisErr error
}

func (s stubChecker) PingStore(context.Context, time.Duration) error { return s.storeErr }
func (s stubChecker) PingRedis(context.Context, time.Duration) error { return s.redisErr }

func ready(t *testing.T, c health.Checker) (int, map[string]string) {
	t.Helper()
	rr := httptest.NewRecorder()
	health.Handler{Checker: c}.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var status map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &status)
	return rr.Code, status
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReady(t *testing.T) {
	code, status := ready(t, stubChecker{})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", status["store"])

	code, status = ready(t, stubChecker{redisErr: health.ErrDisabled})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "disabled", status["redis"])

	code, _ = ready(t, stubChecker{storeErr: errors.New("db down")})
	require.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = ready(t, stubChecker{redisErr: errors.New("redis down")})
	require.Equal(t, http.StatusServiceUnavailable, code)
}

func TestProbes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	code, status := ready(t, health.Probes{Store: store.NewMemory(), Redis: rdb})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", status["redis"])

	mr.Close()
	code, _ = ready(t, health.Probes{Store: store.NewMemory(), Redis: rdb})
	require.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadinessAfterShutdown(t *testing.T) {
	health.SetReady(false)
	t.Cleanup(func() { health.SetReady(true) })
	code, _ := ready(t, stubChecker{})
	require.Equal(t, http.StatusServiceUnavailable, code)
}
