package repository

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the embedded schema. Every statement is CREATE ... IF NOT
// EXISTS so it is safe to run on each deploy.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	statements := splitStatements(schemaSQL)
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	slog.Info("Database schema applied", "statements", len(statements))
	return nil
}

// splitStatements splits on ';' at line end; the schema has no procedures
func splitStatements(schema string) []string {
	var out []string
	for _, part := range strings.Split(schema, ";\n") {
		if stmt := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), ";")); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
