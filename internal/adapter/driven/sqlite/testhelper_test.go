package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestDB returns a migrated in-memory ledger private to the calling
// test. The database is named after t.Name so parallel tests never share it.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := openDSN(context.Background(), memoryDSN(t.Name()))
	require.NoError(t, err, "open test db")
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Migrate()
	require.NoError(t, err, "migrate test db")

	return db
}
