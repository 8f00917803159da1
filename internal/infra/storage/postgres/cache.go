package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CacheDatabases maps each client-side cache database onto a schema.
// Deleting a database drops its schema with everything in it.
type CacheDatabases struct {
	db *DB
}

// NewCacheDatabases creates the cache database store.
func NewCacheDatabases(db *DB) *CacheDatabases {
	return &CacheDatabases{db: db}
}

func dropSchemaSQL(name string) string {
	return "DROP SCHEMA IF EXISTS " + pgx.Identifier{name}.Sanitize() + " CASCADE"
}

func createSchemaSQL(name string) string {
	return "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{name}.Sanitize()
}

// DeleteDatabase drops the schema called name. A missing schema is not an
// error.
func (c *CacheDatabases) DeleteDatabase(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("empty database name")
	}
	if _, err := c.db.ExecContext(ctx, dropSchemaSQL(name)); err != nil {
		return fmt.Errorf("failed to drop %s: %w", name, err)
	}
	return nil
}

// Ensure recreates the named schemas, e.g. after a teardown dropped them.
func (c *CacheDatabases) Ensure(ctx context.Context, names ...string) error {
	for _, name := range names {
		if _, err := c.db.ExecContext(ctx, createSchemaSQL(name)); err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
	}
	return nil
}
