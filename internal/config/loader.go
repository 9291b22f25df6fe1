// Package config loads the gateway configuration.
// Layer 1: built-in defaults (SetDefaults)
// Layer 2: user config file ($XDG_CONFIG_HOME/ascgate/config.yaml or --config)
// Layer 3: ASCGATE_* environment variables
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// AppName names the binary, the config directory and the data directory.
	AppName = "ascgate"
	// EnvPrefix is the environment variable prefix (ASCGATE_AUTH_KEY_ID etc).
	EnvPrefix = "ASCGATE"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults registers every configuration key with its default value.
// Keys must be registered for environment overrides to reach Load.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("auth.key_id", "")
	v.SetDefault("auth.issuer_id", "")
	v.SetDefault("auth.private_key_path", "")
	v.SetDefault("auth.private_key", "")

	v.SetDefault("api.base_url", "https://api.appstoreconnect.apple.com/v1")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.max_attempts", 3)
	v.SetDefault("api.base_delay", "1s")
	v.SetDefault("api.default_retry_after", "60s")
	v.SetDefault("api.user_agent", AppName)

	v.SetDefault("rate_limit.max_requests", 50)
	v.SetDefault("rate_limit.window", "60s")

	v.SetDefault("token.lifetime", "15m")
	v.SetDefault("token.refresh_buffer", "5m")
	v.SetDefault("token.audience", "appstoreconnect-v1")

	v.SetDefault("upload.timeout", "2m")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "simple")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
}

// ConfigureEnv binds ASCGATE_* variables so that ASCGATE_AUTH_KEY_ID
// overrides auth.key_id.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates the settings held by v. It is safe to call
// more than once; the last successful result is available from GetConfig.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		return nil, fmt.Errorf("viper instance is required")
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Auth.PrivateKey = strings.TrimSpace(cfg.Auth.PrivateKey)
	cfg.Auth.PrivateKeyPath = strings.TrimSpace(cfg.Auth.PrivateKeyPath)
	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	setConfig(cfg)
	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigDir returns the XDG config directory for the gateway.
func DefaultConfigDir() string {
	return gfconfig.GetAppConfigDir(AppName)
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := DefaultConfigDir()
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the upload journal.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}
