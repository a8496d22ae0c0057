package database

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDeviceIDIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db))

	first, err := EnsureDeviceID(db)
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err)

	second, err := EnsureDeviceID(db)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestOpenMigratesCleanly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db))

	// migrations are idempotent across restarts
	require.NoError(t, RunMigrations(db))

	var mode string
	require.NoError(t, db.Raw("PRAGMA journal_mode").Scan(&mode).Error)
	assert.Equal(t, "wal", mode)
}
