// Package testdb opens throwaway databases for tests.
package testdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/nftescrow/tradenode/internal/db"
	"github.com/stretchr/testify/require"
)

// SetupTestDB opens a migrated sqlite mirror database under t.TempDir.
func SetupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	sqlite, err := db.OpenSqlite(filepath.Join(t.TempDir(), "mirror", "trades.db"))
	require.NoError(t, err)
	return sqlite, func() { sqlite.Close() }
}
