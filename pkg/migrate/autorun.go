package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/containerflow/pkg/config"
	"github.com/angelmondragon/containerflow/pkg/db"
	"github.com/angelmondragon/containerflow/pkg/db/models"
	"github.com/angelmondragon/containerflow/pkg/logger"
	"gorm.io/gorm"
)

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled. SQLite databases always get their schema.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client.Dialect() == "sqlite" {
		ctx = logg.WithField(ctx, "dialect", client.Dialect())
		logg.Info(ctx, "applying sqlite schema")
		return AutoMigrateSQLite(client.DB())
	}

	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "source": "embedded"})
	logg.Info(ctx, "running Goose migrations (dev auto-run)")

	if err := Run(ctx, sqlDB, "", "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}

// AutoMigrateSQLite creates the requests and history tables from the gorm
// models. Index names match the Postgres migrations.
func AutoMigrateSQLite(conn *gorm.DB) error {
	if err := conn.AutoMigrate(&models.ActiveRequest{}, &models.HistoryRecord{}); err != nil {
		return fmt.Errorf("auto-migrate sqlite: %w", err)
	}
	return nil
}
