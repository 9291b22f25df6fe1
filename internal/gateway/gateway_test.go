package gateway

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/ascgate/internal/config"
	"github.com/namelens/ascgate/internal/core"
	"github.com/namelens/ascgate/internal/core/engine"
)

func testConfig(t *testing.T, baseURL string) (*config.Config, *ecdsa.PrivateKey) {
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
			BaseDelay:   time.Second,
			UserAgent:   "ascgate-test",
		},
		RateLimit: config.RateLimitConfig{MaxRequests: 50, Window: time.Minute},
		Token: config.TokenConfig{
			Lifetime:      15 * time.Minute,
			RefreshBuffer: 5 * time.Minute,
			Audience:      "appstoreconnect-v1",
		},
		Upload: config.UploadConfig{Timeout: time.Minute},
	}, key
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestNewRequiresCredentials(t *testing.T) {
	cfg, _ := testConfig(t, "https://example.invalid/v1")
	cfg.Auth.KeyID = ""

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindConfig))
}

func TestGatewayExecutesSignedRequests(t *testing.T) {
	var keyRef *ecdsa.PrivateKey
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return &keyRef.PublicKey, nil },
			jwt.WithValidMethods([]string{"ES256"}), jwt.WithAudience("appstoreconnect-v1"))
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "KEY1234567", token.Header["kid"])
		assert.Equal(t, "/v1/apps", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"type":"apps","id":"1"}],"links":{}}`))
	}))
	defer server.Close()

	cfg, key := testConfig(t, server.URL+"/v1")
	keyRef = key

	gw, err := New(context.Background(), cfg, WithSleep(noSleep), WithoutStore())
	require.NoError(t, err)
	defer func() { require.NoError(t, gw.Close()) }()

	items, err := gw.Paginator.Collect(context.Background(), engine.Request{Path: "/apps"}, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)

	stats := gw.Limiter.Stats()
	assert.Equal(t, 1, stats.InWindow)
	assert.Equal(t, 50, stats.Limit)
	assert.Nil(t, gw.Store)
	assert.Same(t, gw.Executor, gw.Uploader.API)
}

func TestCloseInvalidatesCredentials(t *testing.T) {
	cfg, _ := testConfig(t, "https://example.invalid/v1")
	gw, err := New(context.Background(), cfg, WithoutStore())
	require.NoError(t, err)

	_, err = gw.Credentials.Acquire(context.Background())
	require.NoError(t, err)
	_, cached := gw.Credentials.Cached()
	require.True(t, cached)

	require.NoError(t, gw.Close())
	_, cached = gw.Credentials.Cached()
	assert.False(t, cached)

	var nilGateway *Gateway
	assert.NoError(t, nilGateway.Close())
}
