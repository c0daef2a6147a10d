package db

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"hackmate/pkg/config"
)

func TestApplySchema_FileErrors(t *testing.T) {
	err := ApplySchema(context.Background(), nil, filepath.Join(t.TempDir(), "missing.sql"))
	require.ErrorContains(t, err, "read schema file")

	empty := filepath.Join(t.TempDir(), "empty.sql")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o600))
	err = ApplySchema(context.Background(), nil, empty)
	require.ErrorContains(t, err, "schema file is empty")
}

// TestConnect_AppliesSchemaTwice checks the schema is idempotent against a real database.
func TestConnect_AppliesSchemaTwice(t *testing.T) {
	_ = godotenv.Load("../../.env")
	dsn := os.Getenv("DATABASE_URL_FOR_TEST")
	if dsn == "" {
		t.Skip("DATABASE_URL_FOR_TEST not set; skipping integration tests")
	}
	cfg := config.Config{
		DatabaseURL: dsn,
		DB:          config.DBConfig{MaxConns: 2, MinConns: 1},
		ApplySchema: true,
		SchemaPath:  "schema.sql",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pool, err := Connect(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, ApplySchema(context.Background(), pool, "schema.sql"))
}
