package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mylittlestore/pos-backend/pkg/migrate"
)

func embeddedMigration(t *testing.T, name string) string {
	t.Helper()
	fsys, err := migrate.Source("")
	require.NoError(t, err)
	files, err := migrate.List(fsys)
	require.NoError(t, err)
	for _, f := range files {
		if f.Name == name {
			body, err := fs.ReadFile(fsys, f.Path)
			require.NoError(t, err)
			return string(body)
		}
	}
	t.Fatalf("no %s migration embedded", name)
	return ""
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	fsys, err := migrate.Source("")
	require.NoError(t, err)
	require.NoError(t, migrate.Validate(fsys))

	files, err := migrate.List(fsys)
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for i := 1; i < len(files); i++ {
		require.Less(t, files[i-1].Version, files[i].Version)
	}

	onDisk, err := migrate.Source("migrations")
	require.NoError(t, err)
	diskFiles, err := migrate.List(onDisk)
	require.NoError(t, err)
	require.Equal(t, files, diskFiles, "binary embeds every migration on disk")
}

func TestOrdersMigrationEnforcesOneActiveOrderPerTable(t *testing.T) {
	content := embeddedMigration(t, "create_orders")
	for _, want := range []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_active_table",
		"WHERE status IN ('using', 'in_progress')",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_order_items_line",
		"CONSTRAINT chk_order_items_count CHECK (count >= 1)",
		"DROP TABLE IF EXISTS order_items",
	} {
		require.Contains(t, content, want)
	}
}

func TestPaymentsMigrationEnforcesSinglePaymentAndCeiling(t *testing.T) {
	content := embeddedMigration(t, "create_payments")
	for _, want := range []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_order ON payments (order_id)",
		"paid_payment_amount <= initial_payment_amount",
		"CONSTRAINT chk_payment_methods_amount CHECK (amount >= 1)",
		"DROP TABLE IF EXISTS payment_methods",
	} {
		require.Contains(t, content, want)
	}
}

func TestItemsMigrationGuardsStock(t *testing.T) {
	content := embeddedMigration(t, "create_store_tables_and_items")
	require.Contains(t, content, "CONSTRAINT chk_items_price CHECK (price >= 1)")
	require.Contains(t, content, "CONSTRAINT chk_items_stock CHECK (stock >= 0)")
}

func TestCreateSortsAfterNewest(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := migrate.Create(dir, "Add Table Notes!", now)
	require.NoError(t, err)
	require.Equal(t, int64(20260301120000), first.Version)
	require.Equal(t, "add_table_notes", first.Name)
	require.True(t, strings.HasSuffix(first.Path, "20260301120000_add_table_notes.sql"))

	second, err := migrate.Create(dir, "backfill notes", now)
	require.NoError(t, err)
	require.Equal(t, int64(20260301120001), second.Version)

	require.NoError(t, migrate.Validate(os.DirFS(dir)))

	_, err = migrate.Create(dir, "  !! ", now)
	require.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	ok := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose StatementEnd\n-- +goose Down\nSELECT 1;\n"
	cases := map[string]fstest.MapFS{
		"bad name": {
			"bad-name.sql": {Data: []byte(ok)},
		},
		"duplicate version": {
			"20260101000000_a.sql": {Data: []byte(ok)},
			"20260101000000_b.sql": {Data: []byte(ok)},
		},
		"missing down": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		},
		"unbalanced statement": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")},
		},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, migrate.Validate(fsys))
		})
	}

	require.NoError(t, migrate.Validate(fstest.MapFS{
		"20260101000000_a.sql": {Data: []byte(ok)},
		"README.md":            {Data: []byte("notes")},
	}))
}

func TestSourceRejectsMissingDir(t *testing.T) {
	_, err := migrate.Source(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
