package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// MaybeRunDev brings the audit ledger schema up to date on API start, but
// only in dev with STOREFRONT_AUTO_MIGRATE set. Other environments run
// cmd/migrate as a deploy step.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.SQL()
	if err != nil {
		return err
	}

	dialect := Dialect(cfg.DB)
	if err := Run(ctx, sqlDB, dialect, EmbeddedDir, "up"); err != nil {
		return fmt.Errorf("auto-migrating ledger: %w", err)
	}
	version, err := CurrentVersion(ctx, sqlDB, dialect, EmbeddedDir)
	if err != nil {
		return fmt.Errorf("reading ledger version: %w", err)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"dialect": dialect,
		"version": version,
	}), "migrate.ledger_current")
	return nil
}
