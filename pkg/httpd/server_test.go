package httpd

import (
	"context"
	"github.com/icinga/icinga-go-library/logging"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestRouter(t *testing.T) {
	var ready atomic.Bool
	logger := logging.NewLogger(zaptest.NewLogger(t).Sugar(), time.Second)
	srv := httptest.NewServer(NewRouter(ready.Load, logger))
	defer srv.Close()

	get := func(path string) (int, string) {
		res, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer func() { _ = res.Body.Close() }()

		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)

		return res.StatusCode, string(body)
	}

	code, _ := get("/healthz")
	require.Equal(t, http.StatusOK, code)

	code, _ = get("/readyz")
	require.Equal(t, http.StatusServiceUnavailable, code)

	ready.Store(true)
	code, _ = get("/readyz")
	require.Equal(t, http.StatusOK, code)

	code, body := get("/metrics")
	require.Equal(t, http.StatusOK, code)
	require.True(t, strings.Contains(body, "go_goroutines"))

	code, _ = get("/missing")
	require.Equal(t, http.StatusNotFound, code)
}

func TestServe(t *testing.T) {
	logger := logging.NewLogger(zaptest.NewLogger(t).Sugar(), time.Second)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, l, NewRouter(nil, logger), logger) }()

	res, err := http.Get("http://" + l.Addr().String() + "/readyz")
	require.NoError(t, err)
	_ = res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		require.Fail(t, "server did not shut down")
	}
}
