package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_FileBackedWithMigrations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "colby.db")

	db, err := NewDB(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	version, err := db.Migrate()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	// Re-running is a no-op.
	again, err := db.Migrate()
	require.NoError(t, err)
	assert.Equal(t, version, again)

	var mode string
	require.NoError(t, db.Reader.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	usernames, err := NewBotConfigRepo(db).GetUsernames(ctx)
	require.NoError(t, err)
	assert.Contains(t, usernames, "coderabbitai")
}

func TestNewDB_EmptyPath(t *testing.T) {
	_, err := NewDB(context.Background(), "")
	require.Error(t, err)
}

func TestNewDB_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDB(ctx, filepath.Join(t.TempDir(), "colby.db"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
