// Package auth signs and caches the short-lived ES256 bearer credentials the
// remote API requires.
package auth

import (
	"context"
	"crypto/ecdsa"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/namelens/ascgate/internal/core"
	"github.com/namelens/ascgate/internal/metrics"
)

const (
	DefaultLifetime      = 15 * time.Minute
	DefaultRefreshBuffer = 5 * time.Minute
	DefaultAudience      = "appstoreconnect-v1"

	flightKey = "credential"
)

// Credential is a signed bearer token and its validity window.
type Credential struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// FreshAt reports whether the credential stays valid for longer than buffer
// after now.
func (c Credential) FreshAt(now time.Time, buffer time.Duration) bool {
	return c.Token != "" && c.ExpiresAt.Sub(now) > buffer
}

// Config carries the signing identity.
type Config struct {
	KeyID         string
	IssuerID      string
	Source        KeySource
	Audience      string
	Lifetime      time.Duration
	RefreshBuffer time.Duration
}

// Manager owns the cached credential and the loaded signing key.
// It is safe for concurrent use.
type Manager struct {
	cfg    Config
	clock  func() time.Time
	logger core.Logger
	group  singleflight.Group

	mu         sync.Mutex
	cached     *Credential
	key        *ecdsa.PrivateKey
	generation uint64
	signings   int64

	// beforeSign runs inside the refresh flight; tests use it to hold a refresh open.
	beforeSign func()
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger core.Logger) Option {
	return func(m *Manager) {
		m.logger = core.LoggerOrNop(logger)
	}
}

// NewManager builds a manager; no key is loaded until the first Acquire.
func NewManager(cfg Config, opts ...Option) *Manager {
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if cfg.RefreshBuffer < 0 {
		cfg.RefreshBuffer = 0
	} else if cfg.RefreshBuffer == 0 {
		cfg.RefreshBuffer = DefaultRefreshBuffer
	}

	m := &Manager{
		cfg:    cfg,
		clock:  func() time.Time { return time.Now().UTC() },
		logger: core.NopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire returns a credential valid for longer than the refresh buffer,
// signing a new one when needed. Concurrent callers share one signing. A
// caller that arrives after Invalidate never receives a credential from a
// refresh that started before it.
func (m *Manager) Acquire(ctx context.Context) (Credential, error) {
	for {
		cred, entry, ok := m.fresh()
		if ok {
			return cred, nil
		}

		ch := m.group.DoChan(flightKey, func() (any, error) {
			return m.refresh()
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return Credential{}, ctx.Err()
		case res = <-ch:
		}
		if res.Err != nil {
			return Credential{}, res.Err
		}

		flight := res.Val.(flightResult)
		if flight.generation < entry {
			// Joined a refresh from before Invalidate; it has finished now.
			continue
		}
		return flight.cred, nil
	}
}

// flightResult tags a signed credential with the generation it was signed
// under.
type flightResult struct {
	cred       Credential
	generation uint64
}

// Cached returns the cached credential without refreshing.
func (m *Manager) Cached() (Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached == nil {
		return Credential{}, false
	}
	return *m.cached, true
}

// Invalidate drops the cached credential and the loaded key. A refresh that is
// already running still answers its waiters but its result is not cached.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = nil
	m.key = nil
	m.generation++
}

// KeyID returns the configured key identifier.
func (m *Manager) KeyID() string {
	return m.cfg.KeyID
}

// IssuerID returns the configured issuer identifier.
func (m *Manager) IssuerID() string {
	return m.cfg.IssuerID
}

// fresh returns the cached credential when it is still fresh, along with the
// current generation.
func (m *Manager) fresh() (Credential, uint64, bool) {
	now := m.clock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached != nil && m.cached.FreshAt(now, m.cfg.RefreshBuffer) {
		return *m.cached, m.generation, true
	}
	return Credential{}, m.generation, false
}

func (m *Manager) refresh() (flightResult, error) {
	// A flight that finished just before this one started may have refilled the cache.
	cred, generation, ok := m.fresh()
	if ok {
		return flightResult{cred: cred, generation: generation}, nil
	}

	m.mu.Lock()
	key := m.key
	m.mu.Unlock()

	if strings.TrimSpace(m.cfg.KeyID) == "" || strings.TrimSpace(m.cfg.IssuerID) == "" {
		return flightResult{}, core.NewFailure(core.KindConfig, "key id and issuer id are required")
	}

	if key == nil {
		if !m.cfg.Source.Configured() {
			return flightResult{}, core.NewFailure(core.KindConfig, "no private key configured: set a key path or inline key content")
		}
		material, err := m.cfg.Source.Load()
		if err != nil {
			metrics.RecordTokenRefresh(false)
			return flightResult{}, err
		}
		key, err = ParseKey(material)
		if err != nil {
			metrics.RecordTokenRefresh(false)
			return flightResult{}, err
		}
	}

	if m.beforeSign != nil {
		m.beforeSign()
	}

	issuedAt := m.clock()
	cred, err := m.sign(key, issuedAt)
	if err != nil {
		metrics.RecordTokenRefresh(false)
		return flightResult{}, err
	}

	m.mu.Lock()
	m.signings++
	if m.generation == generation {
		m.cached = &cred
		m.key = key
	}
	m.mu.Unlock()

	metrics.RecordTokenRefresh(true)
	m.logger.Debug("Signed new API credential",
		zap.String("key_id", m.cfg.KeyID),
		zap.Time("expires_at", cred.ExpiresAt))

	return flightResult{cred: cred, generation: generation}, nil
}

func (m *Manager) sign(key *ecdsa.PrivateKey, issuedAt time.Time) (Credential, error) {
	expiresAt := issuedAt.Add(m.cfg.Lifetime)
	claims := jwt.RegisteredClaims{
		Issuer:    m.cfg.IssuerID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Audience:  jwt.ClaimStrings{m.cfg.Audience},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = m.cfg.KeyID

	signed, err := token.SignedString(key)
	if err != nil {
		return Credential{}, core.WrapFailure(core.KindAuth, err, "sign credential")
	}

	return Credential{Token: signed, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}
