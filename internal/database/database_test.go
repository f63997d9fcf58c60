package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/healthbook/internal/entities"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"), WithLogLevel(logger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDatabase_Migrates(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"accounts", "sign_ins", "documents", "audit_events"} {
		assert.True(t, db.DB.Migrator().HasTable(table), table)
	}
}

func TestNewDatabase_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	db, err := NewDatabase(path, WithLogLevel(logger.Silent))
	require.NoError(t, err)
	require.NoError(t, db.DB.Create(&entities.Account{UID: "u1", Email: "a@x.com"}).Error)
	require.NoError(t, db.Close())

	db, err = NewDatabase(path, WithLogLevel(logger.Silent))
	require.NoError(t, err)
	defer db.Close()

	var count int64
	db.DB.Model(&entities.Account{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestDatabase_Ping(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))

	require.NoError(t, db.Close())
	assert.Error(t, db.Ping(context.Background()))
}
