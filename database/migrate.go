package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema migrations to the MySQL database.
func (c *Connection) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetTableName("schema_migrations")

	if err := goose.SetDialect("mysql"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, c.db, "migrations"); err != nil {
		return fmt.Errorf("failed to up migrations: %w", err)
	}
	return nil
}
