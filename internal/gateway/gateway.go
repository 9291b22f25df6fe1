// Package gateway wires the credential manager, limiter, executor, paginator,
// upload orchestrator and journal from one configuration.
package gateway

import (
	"context"
	"net/http"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/namelens/ascgate/internal/config"
	"github.com/namelens/ascgate/internal/core"
	"github.com/namelens/ascgate/internal/core/auth"
	"github.com/namelens/ascgate/internal/core/engine"
	"github.com/namelens/ascgate/internal/core/store"
)

// Gateway owns every long-lived component a command needs.
type Gateway struct {
	Config      *config.Config
	Credentials *auth.Manager
	Limiter     *engine.WindowLimiter
	Executor    *engine.Executor
	Paginator   *engine.Paginator
	Uploader    *engine.Orchestrator
	// Store is nil when the journal is disabled.
	Store *store.Store

	logger core.Logger
}

type options struct {
	logger     core.Logger
	apiClient  *http.Client
	dataClient *http.Client
	sleep      engine.SleepFunc
	noStore    bool
}

// Option customizes New.
type Option func(*options)

// WithLogger sets the logger shared by all components.
func WithLogger(logger core.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHTTPClient replaces the client used for API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.apiClient = client }
}

// WithTransferClient replaces the client used for upload byte ranges.
func WithTransferClient(client *http.Client) Option {
	return func(o *options) { o.dataClient = client }
}

// WithSleep replaces the wait used by the limiter and retry backoff.
func WithSleep(sleep engine.SleepFunc) Option {
	return func(o *options) { o.sleep = sleep }
}

// WithoutStore skips opening the upload journal regardless of store.enabled.
func WithoutStore() Option {
	return func(o *options) { o.noStore = true }
}

// New builds a Gateway. Credentials must be configured; the key itself is
// read lazily on the first Acquire.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, core.NewFailure(core.KindConfig, "configuration is required")
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, core.WrapFailure(core.KindConfig, err, "invalid credentials configuration")
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := core.LoggerOrNop(o.logger)

	manager := auth.NewManager(auth.Config{
		KeyID:    cfg.Auth.KeyID,
		IssuerID: cfg.Auth.IssuerID,
		Source: auth.KeySource{
			Path:   cfg.Auth.PrivateKeyPath,
			Inline: cfg.Auth.PrivateKey,
		},
		Audience:      cfg.Token.Audience,
		Lifetime:      cfg.Token.Lifetime,
		RefreshBuffer: cfg.Token.RefreshBuffer,
	}, auth.WithLogger(logger))

	limiter := engine.NewWindowLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	limiter.Logger = logger
	if o.sleep != nil {
		limiter.Sleep = o.sleep
	}

	apiClient := o.apiClient
	if apiClient == nil {
		apiClient = &http.Client{}
	}
	executor := &engine.Executor{
		BaseURL:           cfg.API.BaseURL,
		Client:            apiClient,
		Limiter:           limiter,
		Credentials:       manager,
		MaxAttempts:       cfg.API.MaxAttempts,
		BaseDelay:         cfg.API.BaseDelay,
		Timeout:           cfg.API.Timeout,
		DefaultRetryAfter: cfg.API.DefaultRetryAfter,
		UserAgent:         cfg.API.UserAgent,
		Sleep:             o.sleep,
		Logger:            logger,
	}

	paginator := engine.NewPaginator(executor)
	paginator.Logger = logger

	g := &Gateway{
		Config:      cfg,
		Credentials: manager,
		Limiter:     limiter,
		Executor:    executor,
		Paginator:   paginator,
		logger:      logger,
	}

	uploader := &engine.Orchestrator{
		API:         executor,
		Transfer:    o.dataClient,
		PartTimeout: cfg.Upload.Timeout,
		Logger:      logger,
	}

	if cfg.Store.Enabled && !o.noStore {
		st, err := OpenJournal(ctx, cfg.Store)
		if err != nil {
			manager.Invalidate()
			return nil, err
		}
		g.Store = st
		uploader.Journal = st
	}
	g.Uploader = uploader

	return g, nil
}

// OpenJournal opens and migrates the upload journal.
func OpenJournal(ctx context.Context, cfg config.StoreConfig) (*store.Store, error) {
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, core.WrapFailure(core.KindConfig, err, "open upload journal")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, core.WrapFailure(core.KindConfig, err, "migrate upload journal")
	}
	return st, nil
}

// Close drops cached credentials and closes the journal.
func (g *Gateway) Close() error {
	if g == nil {
		return nil
	}

	var result *multierror.Error
	if g.Credentials != nil {
		g.Credentials.Invalidate()
	}
	if g.Store != nil {
		if err := g.Store.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		g.Store = nil
	}

	if err := result.ErrorOrNil(); err != nil {
		g.logger.Warn("gateway shutdown reported errors", zap.Error(err))
		return err
	}
	g.logger.Debug("gateway closed")
	return nil
}
