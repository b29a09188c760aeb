// Package testutil provides a migrated SQLite database for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"fablab-backend-go/internal/db"
	"fablab-backend-go/internal/migrations"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// TestDB opens a fresh SQLite file in t.TempDir with all migrations applied.
func TestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	database, err := db.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, migrations.Apply(context.Background(), database))
	return database
}
