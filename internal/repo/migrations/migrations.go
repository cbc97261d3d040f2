// Package migrations embeds the SQL schema of the credential and event stores
// and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// ErrUnsupportedDialect is returned for dialects without embedded migrations.
var ErrUnsupportedDialect = errors.New("unsupported migration dialect")

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

//nolint:gochecknoglobals
var dirs = map[goose.Dialect]string{
	goose.DialectSQLite3:  "sqlite",
	goose.DialectPostgres: "postgres",
}

// Up applies all pending migrations for the given dialect. It is safe to call
// on an already migrated database.
func Up(ctx context.Context, db *sql.DB, dialect goose.Dialect) error {
	dir, ok := dirs[dialect]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedDialect, dialect)
	}

	fsys, err := fs.Sub(files, dir)
	if err != nil {
		return fmt.Errorf("sub fs: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("new provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	return nil
}
