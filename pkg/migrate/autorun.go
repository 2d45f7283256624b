package migrate

import (
	"context"
	"fmt"

	"github.com/mylittlestore/pos-backend/pkg/config"
	"github.com/mylittlestore/pos-backend/pkg/db"
	"github.com/mylittlestore/pos-backend/pkg/logger"
)

// MaybeRunDev brings a dev database up to date on boot when auto-migrate is
// enabled. SQLite gets the embedded schema; Postgres runs the embedded goose
// migrations.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": client.Dialect()})

	if client.Dialect() == db.DialectSQLite {
		logg.Info(ctx, "applying sqlite schema")
		return db.ApplySQLiteSchema(ctx, client.DB())
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	fsys, err := Source("")
	if err != nil {
		return err
	}
	runner, err := NewRunner(sqlDB, fsys)
	if err != nil {
		return err
	}
	applied, err := runner.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", len(applied)), "migrations up to date")
	return nil
}
