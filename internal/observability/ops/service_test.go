package ops

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uptimeninja/internal/metrics"
	logx "uptimeninja/pkg/logx"
)

func get(t *testing.T, h http.Handler, path string, hdr ...string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if len(hdr) == 2 {
		req.Header.Set(hdr[0], hdr[1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	body, _ := io.ReadAll(rec.Body)
	return rec.Code, string(body)
}

func TestHandlerRoutes(t *testing.T) {
	m := metrics.New()
	m.Probe(true)
	s := New(Config{}, m.Registry, logx.Nop())
	ready := errors.New("db down")
	s.AddReadinessCheck("storage", func(context.Context) error { return ready })

	h := s.Handler(Config{})
	code, body := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "uptimeninja_")

	code, _ = get(t, h, "/live")
	assert.Equal(t, http.StatusOK, code)
	code, _ = get(t, h, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	ready = nil
	code, _ = get(t, h, "/ready")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get(t, h, "/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = get(t, s.Handler(Config{Pprof: true}), "/debug/pprof/")
	assert.Equal(t, http.StatusOK, code)
}

func TestTokenAuth(t *testing.T) {
	s := New(Config{}, nil, logx.Nop())
	h := s.Handler(Config{Token: "sekret"})

	code, _ := get(t, h, "/live")
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = get(t, h, "/live?token=nope")
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = get(t, h, "/live?token=sekret")
	assert.Equal(t, http.StatusOK, code)
	code, _ = get(t, h, "/live", "Authorization", "Bearer sekret")
	assert.Equal(t, http.StatusOK, code)
}

func TestIsLoopbackAddr(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:9090": true,
		"localhost:1":    true,
		"[::1]:9090":     true,
		":9090":          false,
		"0.0.0.0:9090":   false,
		"10.0.0.5:9090":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		assert.Equal(t, want, IsLoopbackAddr(addr), addr)
	}
}

func TestStartServeStop(t *testing.T) {
	s := New(Config{}, metrics.New().Registry, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Reconfigure(ctx, Config{Enabled: true, Addr: "127.0.0.1:0"})
	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 5*time.Millisecond)

	resp, err := http.Get("http://" + s.Addr() + "/live")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer stopCancel()
	s.Reconfigure(stopCtx, Config{Enabled: false})
	assert.Nil(t, s.Supervisor())
	assert.Empty(t, s.Addr())
}
