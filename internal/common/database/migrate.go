// internal/common/database/migrate.go
package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaDDL string

// Schema returns the DDL applied by Migrate.
func Schema() string { return schemaDDL }

// Migrate applies the idempotent schema. Statements run through the simple
// query protocol, which lib/pq uses when no arguments are passed.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
