package testhelpers

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gymfuel/gymfuel-sync/internal/database"
)

// SetupTestDatabase opens a throwaway mirror database under the test's temp
// directory, migrated and ready to use.
func SetupTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mirror.db")
	db, err := database.Open(path)
	if err != nil {
		t.Fatalf("failed to open test mirror database: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		t.Fatalf("failed to migrate test mirror database: %v", err)
	}
	return db
}

// NewTestLogger returns a logger that discards output.
func NewTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
