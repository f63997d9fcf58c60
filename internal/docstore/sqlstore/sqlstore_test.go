package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mrlokans/healthbook/internal/docstore"
	"github.com/mrlokans/healthbook/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "docs.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Document{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestStore_WriteDocument(t *testing.T) {
	db := setupTestDB(t)
	store := New(db)
	ctx := context.Background()

	record := entities.NewUserProfileRecord("Ann", "a@x.com", time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC))
	require.NoError(t, store.WriteDocument(ctx, "users", "uid-1", record))

	var got entities.UserProfileRecord
	found, err := store.Read(ctx, "users", "uid-1", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, record, got)

	var raw entities.Document
	require.NoError(t, db.First(&raw, "collection = ? AND doc_key = ?", "users", "uid-1").Error)
	assert.Contains(t, raw.Data, `"healthProfile":{"age":null,"gender":null,"bloodType":null,"allergies":[],"conditions":[]}`)
}

func TestStore_WriteDocumentReplaces(t *testing.T) {
	store := New(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.WriteDocument(ctx, "users", "uid-1", map[string]string{"name": "Ann"}))
	require.NoError(t, store.WriteDocument(ctx, "users", "uid-1", map[string]string{"name": "Annie"}))

	var got map[string]string
	found, err := store.Read(ctx, "users", "uid-1", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Annie", got["name"])
}

func TestStore_ReadMissing(t *testing.T) {
	store := New(setupTestDB(t))

	var got map[string]any
	found, err := store.Read(context.Background(), "users", "nobody", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_WriteDocumentErrors(t *testing.T) {
	db := setupTestDB(t)
	store := New(db)

	err := store.WriteDocument(context.Background(), "", "uid-1", 1)
	assert.ErrorIs(t, err, docstore.ErrEmptyCollection)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	err = store.WriteDocument(context.Background(), "users", "uid-1", 1)
	var storeErr *docstore.Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "write", storeErr.Op)
	assert.Equal(t, "users", storeErr.Collection)
	assert.Equal(t, "uid-1", storeErr.Key)
}
