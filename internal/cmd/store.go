package cmd

import (
	"context"

	"github.com/namelens/ascgate/internal/core"
	"github.com/namelens/ascgate/internal/core/store"
	"github.com/namelens/ascgate/internal/gateway"
)

// openJournal opens the upload journal without requiring credentials.
func openJournal(ctx context.Context) (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, core.WrapFailure(core.KindConfig, err, "load config")
	}
	if !cfg.Store.Enabled {
		return nil, core.NewFailure(core.KindConfig, "upload journal is disabled (store.enabled=false)")
	}
	return gateway.OpenJournal(ctx, cfg.Store)
}
