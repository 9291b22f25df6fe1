package server_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/ascgate/internal/config"
	"github.com/namelens/ascgate/internal/gateway"
	"github.com/namelens/ascgate/internal/observability"
	"github.com/namelens/ascgate/internal/server"
	"github.com/namelens/ascgate/internal/server/handlers"
)

// isPermissionError normalizes OS-specific permission errors so tests skip
// when loopback sockets are blocked.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"permission denied", "operation not permitted", "not permitted"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func initMetricsOrSkip(t *testing.T, namespace string) {
	t.Helper()
	if err := observability.InitMetrics(namespace, 0, namespace); err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping metrics test due to sandbox permissions: %v", err)
		}
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = observability.StopMetrics() })
}

// listenLoopback binds IPv4 loopback explicitly and skips when the sandbox
// refuses to open sockets.
func listenLoopback(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping server setup: %v", err)
		}
		require.NoError(t, err)
	}
	ts := &httptest.Server{Listener: listener, Config: &http.Server{Handler: handler}}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts
}

func gatewayConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	return &config.Config{
		Auth: config.AuthConfig{
			KeyID:      "KEY1234567",
			IssuerID:   "issuer-1",
			PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
		},
		API: config.APIConfig{
			BaseURL:     baseURL,
			Timeout:     5 * time.Second,
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
		},
		RateLimit: config.RateLimitConfig{MaxRequests: 50, Window: time.Minute},
		Token:     config.TokenConfig{Lifetime: 15 * time.Minute, RefreshBuffer: 5 * time.Minute, Audience: "appstoreconnect-v1"},
		Upload:    config.UploadConfig{Timeout: time.Minute},
	}
}

func TestGatewayPassthroughEndToEnd(t *testing.T) {
	observability.InitServerLogger("ascgate-it", "error")
	initMetricsOrSkip(t, "ascgate_it")

	var upstreamCalls atomic.Int32
	var upstream *httptest.Server
	upstream = listenLoopback(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("cursor") == "" {
			_, _ = io.WriteString(w, `{"data":[{"type":"apps","id":"1"}],"links":{"next":"`+upstream.URL+`/v1/apps?cursor=2"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":[{"type":"apps","id":"2"}],"links":{}}`)
	}))

	gw, err := gateway.New(context.Background(), gatewayConfig(t, upstream.URL+"/v1"),
		gateway.WithoutStore(),
		gateway.WithSleep(func(context.Context, time.Duration) error { return nil }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })

	srv := server.New("127.0.0.1", 0,
		server.WithAPI(gw.Executor, upstream.URL+"/v1"),
		server.WithRateWindow(gw.Limiter),
		server.WithHealthChecker("credentials", handlers.CheckerFunc(func(ctx context.Context) error {
			_, err := gw.Credentials.Acquire(ctx)
			return err
		})),
	)
	ts := listenLoopback(t, srv.Handler())
	client := ts.Client()

	resp, err := client.Get(ts.URL + "/v1/apps?all=true")
	require.NoError(t, err)
	var list struct {
		Data []json.RawMessage `json:"data"`
		Meta struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list.Data, 2)
	assert.Equal(t, 2, list.Meta.Count)
	assert.EqualValues(t, 2, upstreamCalls.Load())

	resp, err = client.Get(ts.URL + "/ratelimit")
	require.NoError(t, err)
	var window handlers.RateWindowResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&window))
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, 2, window.InWindow)
	assert.Equal(t, 48, window.Remaining)

	resp, err = client.Get(ts.URL + "/health/ready")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ascgate_it_gateway_requests_total")
	assert.Contains(t, string(body), "ascgate_it_http_requests_total")
}

func TestMetricsEndpointWithTelemetryDisabled(t *testing.T) {
	originalExporter := observability.PrometheusExporter
	originalTelemetry := observability.TelemetrySystem
	observability.PrometheusExporter = nil
	observability.TelemetrySystem = nil
	t.Cleanup(func() {
		observability.PrometheusExporter = originalExporter
		observability.TelemetrySystem = originalTelemetry
	})

	ts := listenLoopback(t, server.New("127.0.0.1", 0).Handler())
	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
