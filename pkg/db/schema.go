package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// ApplySQLiteSchema creates the POS tables on a SQLite connection. Postgres
// deployments use the goose migrations instead.
func ApplySQLiteSchema(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("connection is required")
	}
	for _, stmt := range strings.Split(sqliteSchema, ";\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
