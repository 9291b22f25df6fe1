package cmd

import (
	"errors"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/namelens/ascgate/internal/config"
	"github.com/namelens/ascgate/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "App Store Connect client gateway",
	Long: config.AppName + ` - App Store Connect client gateway

Signs and caches API credentials, keeps requests inside a local rate window,
retries transient failures, walks paginated collections and uploads assets.

Use the subcommands to perform specific operations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early to prevent config loading from emitting
	// metrics to stdout. Server mode will initialize proper telemetry later.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/"+config.AppName+"/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Initialize CLI logger early so we can use it in config loading
	observability.InitCLILogger(config.AppName, verbose)

	v := viper.GetViper()
	config.SetDefaults(v)
	config.ConfigureEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if appConfigDir := gfconfig.GetAppConfigDir(config.AppName); appConfigDir != "" {
			v.AddConfigPath(appConfigDir)
		} else if verbose {
			observability.CLILogger.Warn("Could not resolve XDG config directory")
		}
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err == nil {
		observability.CLILogger.Debug("Using config file", zap.String("path", v.ConfigFileUsed()))
	} else {
		// It's OK if config file doesn't exist, we have defaults
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			observability.CLILogger.Debug("No config file found, using defaults and environment variables")
		} else {
			observability.CLILogger.Warn("Error reading config file", zap.Error(err))
		}
	}
}

// loadConfig decodes and validates the merged settings, then applies the
// configured log level and profile to the CLI logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	observability.InitLogger(config.AppName, cfg.Logging.Profile, cfg.Logging.Level, verbose)
	return cfg, nil
}
