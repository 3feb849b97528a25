package repository

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-reservation-service/internal/pkg/database/sqlite"
	"github.com/jmoiron/sqlx"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate creates the ledger, reservation and movement tables if missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	file := "schema/postgres.sql"
	if db.DriverName() == sqlite.DriverName {
		file = "schema/sqlite.sql"
	}

	raw, err := schemaFS.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	for _, stmt := range strings.Split(string(raw), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema %s: %w", file, err)
		}
	}
	return nil
}
