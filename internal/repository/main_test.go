package repository

import (
	"testing"

	"agora/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupMockDB returns a Postgres-dialect GORM handle over sqlmock, for tests
// that pin the exact SQL a repository sends.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

// setupSQLite returns a migrated in-memory database, for tests that depend
// on real constraint behaviour.
func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.NewTestDB(t)
}

func uintPtr(v uint) *uint { return &v }
