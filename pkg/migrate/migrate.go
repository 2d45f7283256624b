package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are written and where the embedded set
// is read from at build time.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Source returns the migration files to run. An empty dir selects the set
// compiled into the binary.
func Source(dir string) (fs.FS, error) {
	if strings.TrimSpace(dir) == "" {
		return fs.Sub(embedded, "migrations")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("migrations dir %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migrations dir %q is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

// Step describes one migration applied or rolled back by the runner.
type Step struct {
	Version   int64
	Path      string
	Direction string
	Duration  time.Duration
}

// Status is the applied state of one migration file.
type Status struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

// Runner applies goose migrations against a Postgres connection. The
// connection is owned by the caller.
type Runner struct {
	provider *goose.Provider
}

func NewRunner(db *sql.DB, fsys fs.FS) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if fsys == nil {
		return nil, errors.New("migration source is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

func (r *Runner) Up(ctx context.Context) ([]Step, error) {
	results, err := r.provider.Up(ctx)
	if err != nil {
		return steps(results), fmt.Errorf("goose up: %w", err)
	}
	return steps(results), nil
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) ([]Step, error) {
	result, err := r.provider.Down(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose down: %w", err)
	}
	return steps([]*goose.MigrationResult{result}), nil
}

// To migrates up or down until target is the current database version.
func (r *Runner) To(ctx context.Context, target int64) ([]Step, error) {
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == target:
		return nil, nil
	case current < target:
		results, err = r.provider.UpTo(ctx, target)
	default:
		results, err = r.provider.DownTo(ctx, target)
	}
	if err != nil {
		return steps(results), fmt.Errorf("goose migrate %d -> %d: %w", current, target, err)
	}
	return steps(results), nil
}

func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	rows, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	out := make([]Status, 0, len(rows))
	for _, row := range rows {
		if row == nil || row.Source == nil {
			continue
		}
		out = append(out, Status{
			Version:   row.Source.Version,
			Path:      row.Source.Path,
			Applied:   row.State == goose.StateApplied,
			AppliedAt: row.AppliedAt,
		})
	}
	return out, nil
}

func steps(results []*goose.MigrationResult) []Step {
	out := make([]Step, 0, len(results))
	for _, res := range results {
		if res == nil || res.Source == nil || res.Empty {
			continue
		}
		out = append(out, Step{
			Version:   res.Source.Version,
			Path:      res.Source.Path,
			Direction: res.Direction,
			Duration:  res.Duration,
		})
	}
	return out
}
