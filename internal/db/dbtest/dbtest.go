// Package dbtest opens a migrated PostgreSQL pool for integration tests.
// Tests are skipped unless TEST_DB_HOST is set.
package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vasiliy-maslov/shop-service/internal/config"
	"github.com/vasiliy-maslov/shop-service/internal/db"
)

const truncateAll = `TRUNCATE TABLE payments, order_items, orders, cart_items, carts,
	product_discounts, discounts, products, categories, addresses, users CASCADE`

var (
	migrateOnce sync.Once
	migrateErr  error
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Config builds the test database settings from TEST_DB_* variables.
func Config(t *testing.T) config.PostgresConfig {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping integration test")
	}

	return config.PostgresConfig{
		Host:           host,
		Port:           envOr("TEST_DB_PORT", "5432"),
		User:           envOr("TEST_DB_USER", "postgres"),
		Password:       envOr("TEST_DB_PASSWORD", "postgres"),
		DBName:         envOr("TEST_DB_NAME", "shop_test"),
		SSLMode:        "disable",
		Schema:         envOr("TEST_DB_SCHEMA", "shop_test"),
		MaxConns:       5,
		MinConns:       1,
		MigrationsPath: migrationsPath(t),
	}
}

// migrationsPath walks up from the working directory to the module root.
func migrationsPath(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "migrations")
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found above working directory")
		}
		dir = parent
	}
}

// Open migrates the test database once per process and returns an empty,
// connected pool that is closed when the test ends.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	cfg := Config(t)
	ctx := context.Background()

	migrateOnce.Do(func() {
		migrateErr = db.Migrate(ctx, cfg, true)
	})
	if migrateErr != nil {
		t.Fatalf("failed to migrate test database: %v", migrateErr)
	}

	conn, err := db.New(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(conn.Close)

	if _, err := conn.Pool.Exec(ctx, truncateAll); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
	return conn.Pool
}
