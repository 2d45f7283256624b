package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/mylittlestore/pos-backend/pkg/config"
	"github.com/mylittlestore/pos-backend/pkg/db"
	"github.com/mylittlestore/pos-backend/pkg/logger"
	"github.com/mylittlestore/pos-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", "", "migrations directory (empty uses the embedded set; create defaults to "+migrate.DefaultDir+")")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	// create and validate only touch files.
	var err error
	switch opts.cmd {
	case "create":
		err = create(opts)
	case "validate":
		err = validate(opts)
	default:
		err = withDatabase(logg, opts)
	}
	if err != nil {
		logg.Error(context.Background(), "migrate "+opts.cmd+" failed", err)
		os.Exit(1)
	}
}

func create(opts options) error {
	if opts.name == "" {
		return errors.New("-name is required")
	}
	dir := opts.dir
	if dir == "" {
		dir = migrate.DefaultDir
	}
	file, err := migrate.Create(dir, opts.name, time.Now())
	if err != nil {
		return err
	}
	fmt.Println("created", file.Path)
	return nil
}

func validate(opts options) error {
	fsys, err := migrate.Source(opts.dir)
	if err != nil {
		return err
	}
	if err := migrate.Validate(fsys); err != nil {
		return err
	}
	fmt.Println("migrations ok")
	return nil
}

func withDatabase(logg *logger.Logger, opts options) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": opts.cmd})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if dbClient.Dialect() == db.DialectSQLite {
		if opts.cmd != "up" {
			return fmt.Errorf("sqlite supports only -cmd=up, got %q", opts.cmd)
		}
		if err := db.ApplySQLiteSchema(ctx, dbClient.DB()); err != nil {
			return err
		}
		logg.Info(ctx, "sqlite schema applied")
		return nil
	}

	sqlDB, err := dbClient.SQL()
	if err != nil {
		return err
	}
	fsys, err := migrate.Source(opts.dir)
	if err != nil {
		return err
	}
	runner, err := migrate.NewRunner(sqlDB, fsys)
	if err != nil {
		return err
	}

	var steps []migrate.Step
	switch opts.cmd {
	case "up":
		steps, err = runner.Up(ctx)
	case "down":
		steps, err = runner.Down(ctx)
	case "version":
		target, perr := strconv.ParseInt(opts.version, 10, 64)
		if perr != nil {
			return fmt.Errorf("-version %q: %w", opts.version, perr)
		}
		steps, err = runner.To(ctx, target)
	case "status":
		rows, serr := runner.Status(ctx)
		if serr != nil {
			return serr
		}
		for _, row := range rows {
			applied := "pending"
			if row.Applied {
				applied = row.AppliedAt.Format(time.RFC3339)
			}
			fmt.Printf("%d\t%-24s\t%s\n", row.Version, applied, row.Path)
		}
		return nil
	default:
		return fmt.Errorf("unknown -cmd %q", opts.cmd)
	}

	for _, step := range steps {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     step.Version,
			"direction":   step.Direction,
			"duration_ms": step.Duration.Milliseconds(),
		}), step.Path)
	}
	return err
}
