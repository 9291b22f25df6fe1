package main

import (
	"github.com/namelens/ascgate/internal/cmd"
	apperrors "github.com/namelens/ascgate/internal/errors"
	"github.com/namelens/ascgate/internal/server/handlers"
)

// Version information set via ldflags during build
// Example: go build -ldflags="-X main.version=1.0.0 -X main.commit=abc123 -X main.buildDate=2025-10-28"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	handlers.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		// Exit code follows the failure kind carried by err.
		cmd.ExitWithCodeStderr(apperrors.ExitCodeFor(err), "Command execution failed", err)
	}
}
