package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/ascgate/internal/config"
	"github.com/namelens/ascgate/internal/core"
	"github.com/namelens/ascgate/internal/core/engine"
	"github.com/namelens/ascgate/internal/gateway"
	"github.com/namelens/ascgate/internal/observability"
)

var doctorOnline bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the local setup: config, signing key, upload
journal and, with --online, an authenticated call to the API.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report := &doctorReport{out: cmd.OutOrStdout(), total: 6}
		if doctorOnline {
			report.total++
		}
		runDoctor(cmd.Context(), report)
		if report.failed > 0 {
			return core.Failuref(core.KindConfig, "%d of %d checks failed", report.failed, report.total)
		}
		return nil
	},
}

// doctorReport prints numbered check results.
type doctorReport struct {
	out    io.Writer
	total  int
	step   int
	failed int
}

func (r *doctorReport) pass(name, detail string) {
	r.step++
	fmt.Fprintf(r.out, "[%d/%d] %s... ✅ %s\n", r.step, r.total, name, detail)
}

func (r *doctorReport) warn(name, detail string) {
	r.step++
	fmt.Fprintf(r.out, "[%d/%d] %s... ⚠️  %s\n", r.step, r.total, name, detail)
}

func (r *doctorReport) fail(name string, err error) {
	r.step++
	r.failed++
	fmt.Fprintf(r.out, "[%d/%d] %s... ❌ %s\n", r.step, r.total, name, core.Redact(err.Error()))
}

func runDoctor(ctx context.Context, report *doctorReport) {
	version := crucible.GetVersion()
	report.pass("Checking runtime", fmt.Sprintf("%s %s/%s, gofulmen %s", runtime.Version(), runtime.GOOS, runtime.GOARCH, version.Gofulmen))

	configPath := config.DefaultConfigPath()
	switch {
	case configPath == "":
		report.warn("Checking config file", "config directory not resolved")
	case fileExists(configPath):
		report.pass("Checking config file", configPath)
	default:
		report.warn("Checking config file", configPath+" missing (run '"+config.AppName+" doctor init')")
	}

	cfg, err := loadConfig()
	if err != nil {
		report.fail("Checking configuration", err)
		return
	}
	report.pass("Checking configuration", fmt.Sprintf("base url %s, %d requests per %s", cfg.API.BaseURL, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window))

	gw, err := gateway.New(ctx, cfg, gateway.WithLogger(observability.Logger()), gateway.WithoutStore())
	if err != nil {
		report.fail("Checking credentials", err)
		report.fail("Signing token", core.NewFailure(core.KindConfig, "skipped"))
	} else {
		defer gw.Close() // nolint:errcheck // best-effort cleanup
		report.pass("Checking credentials", fmt.Sprintf("issuer %s, key %s", cfg.Auth.IssuerID, cfg.Auth.KeyID))
		if credential, err := gw.Credentials.Acquire(ctx); err != nil {
			report.fail("Signing token", err)
		} else {
			report.pass("Signing token", "expires "+credential.ExpiresAt.UTC().Format(time.RFC3339))
		}
	}

	checkJournal(ctx, report, cfg)

	if doctorOnline {
		if gw == nil {
			report.fail("Calling API", core.NewFailure(core.KindConfig, "skipped: credentials unavailable"))
			return
		}
		resp, err := gw.Executor.Execute(ctx, engine.Request{Path: "apps", Query: map[string][]string{"limit": {"1"}}})
		if err != nil {
			report.fail("Calling API", err)
			return
		}
		report.pass("Calling API", fmt.Sprintf("status %d", resp.Status))
	}
}

func checkJournal(ctx context.Context, report *doctorReport, cfg *config.Config) {
	if !cfg.Store.Enabled {
		report.warn("Checking upload journal", "disabled")
		return
	}
	if cfg.Store.URL != "" {
		report.pass("Checking upload journal", cfg.Store.URL+" (remote)")
		return
	}

	journal, err := gateway.OpenJournal(ctx, cfg.Store)
	if err != nil {
		report.fail("Checking upload journal", err)
		return
	}
	defer journal.Close() // nolint:errcheck // best-effort cleanup

	if err := journal.CheckHealth(ctx); err != nil {
		report.fail("Checking upload journal", err)
		return
	}
	absPath, _ := filepath.Abs(cfg.Store.Path)
	report.pass("Checking upload journal", absPath)
}

var (
	doctorInitForce    bool
	doctorInitKeyID    string
	doctorInitIssuerID string
	doctorInitKeyPath  string
)

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return core.NewFailure(core.KindConfig, "config path not resolved")
		}
		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return core.Failuref(core.KindConfig, "config file already exists: %s (use --force to overwrite)", configPath)
		}
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}

		content := buildInitConfig(doctorInitKeyID, doctorInitIssuerID, doctorInitKeyPath)
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.Logger().Info("Config initialized", zap.String("path", configPath))
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
		return nil
	},
}

var doctorConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration paths and credential sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		configPath := config.DefaultConfigPath()
		fmt.Fprintf(out, "Config file:    %s (%s)\n", configPath, existenceStatus(fileExists(configPath)))
		fmt.Fprintf(out, "Journal:        %s (%s)\n", config.DefaultStorePath(), existenceStatus(fileExists(config.DefaultStorePath())))
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Environment:")
		for _, name := range []string{"AUTH_KEY_ID", "AUTH_ISSUER_ID", "AUTH_PRIVATE_KEY_PATH", "AUTH_PRIVATE_KEY"} {
			env := config.EnvPrefix + "_" + name
			fmt.Fprintf(out, "  %s: %s\n", env, envStatus(env))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)
	doctorCmd.AddCommand(doctorConfigCmd)

	doctorCmd.Flags().BoolVar(&doctorOnline, "online", false, "also make one authenticated API call")

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
	doctorInitCmd.Flags().StringVar(&doctorInitKeyID, "key-id", "", "API key ID")
	doctorInitCmd.Flags().StringVar(&doctorInitIssuerID, "issuer-id", "", "API key issuer ID")
	doctorInitCmd.Flags().StringVar(&doctorInitKeyPath, "key-path", "", "path to the .p8 private key")
}

func buildInitConfig(keyID, issuerID, keyPath string) string {
	value := func(v, placeholder string) string {
		if strings.TrimSpace(v) == "" {
			return fmt.Sprintf("%q  # %s", "", placeholder)
		}
		return fmt.Sprintf("%q", strings.TrimSpace(v))
	}

	lines := []string{
		"# " + config.AppName + " config - created by '" + config.AppName + " doctor init'",
		"auth:",
		"  key_id: " + value(keyID, "or set "+config.EnvPrefix+"_AUTH_KEY_ID"),
		"  issuer_id: " + value(issuerID, "or set "+config.EnvPrefix+"_AUTH_ISSUER_ID"),
		"  private_key_path: " + value(keyPath, "or set "+config.EnvPrefix+"_AUTH_PRIVATE_KEY"),
		"rate_limit:",
		"  max_requests: 50",
		"  window: 60s",
		"store:",
		"  enabled: true",
	}
	return strings.Join(lines, "\n") + "\n"
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func existenceStatus(exists bool) string {
	if exists {
		return "exists"
	}
	return "missing"
}

func envStatus(name string) string {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return "(set)"
	}
	return "(not set)"
}
