package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func passing() CheckFunc { return func(context.Context) error { return nil } }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, fn http.HandlerFunc) (int, statusResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func TestLive_AllPassing(t *testing.T) {
	h := New()
	h.Add(Liveness, "a", time.Second, passing())
	h.Add(Liveness, "b", time.Second, failing("never run"))

	code, body := serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
}

func TestLive_FailureThreshold(t *testing.T) {
	h := New()
	h.Add(Liveness, "db", time.Second, failing("connection refused"))
	p := h.snapshot(Liveness)[0]
	ctx := context.Background()

	p.run(ctx)
	p.run(ctx)
	code, _ := serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "below threshold")

	p.run(ctx)
	code, body := serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["db"])
}

func TestCustomThresholds(t *testing.T) {
	var fail bool
	h := New()
	h.Add(Readiness, "flaky", time.Second, func(context.Context) error {
		if fail {
			return errors.New("down")
		}
		return nil
	}, WithThresholds(1, 2))
	h.SetReady(true)
	p := h.snapshot(Readiness)[0]
	ctx := context.Background()

	fail = true
	p.run(ctx)
	assert.False(t, h.IsReady())

	fail = false
	p.run(ctx)
	assert.False(t, h.IsReady(), "one success is not enough")
	p.run(ctx)
	assert.True(t, h.IsReady())
}

func TestReady(t *testing.T) {
	h := New()
	h.Add(Readiness, "storage", time.Second, passing())

	code, body := serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "service is not ready", body.Checks["_readiness"])
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, _ = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	code, _ = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReady_IgnoresLiveness(t *testing.T) {
	h := New()
	h.Add(Liveness, "goroutines", time.Second, failing("too many"), WithThresholds(1, 1))
	h.SetReady(true)
	h.snapshot(Liveness)[0].run(context.Background())

	assert.True(t, h.IsReady())
	code, _ := serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestRun(t *testing.T) {
	h := New()
	h.Add(Readiness, "storage", time.Second, PingCheck(pingerFunc(func(context.Context) error {
		return errors.New("refused")
	})), WithThresholds(1, 1))
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return !h.IsReady() }, time.Second, time.Millisecond)
	_, body := serve(t, h.ReadyEndpoint)
	assert.Contains(t, body.Checks["storage"], "refused")

	cancel()
	require.NoError(t, <-done)
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.Add(Liveness, "l", time.Second, failing("err"))
	h.Add(Readiness, "r", time.Second, passing())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx, time.Millisecond) }()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}
