package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/healthbook/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.AuditEvent{})
	require.NoError(t, err)

	return db
}

func TestRepository_LogEvent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	event := &entities.AuditEvent{
		UID:       "uid-1",
		ClientID:  "client-1",
		EventType: entities.AuditEventAuth,
		Action:    "sign_in",
		Status:    entities.AuditStatusSuccess,
	}

	err := repo.LogEvent(context.Background(), event)
	require.NoError(t, err)
	assert.NotZero(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestRepository_GetEvents(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRepository(db)

	for i := 0; i < 15; i++ {
		event := &entities.AuditEvent{
			UID:       "uid-1",
			ClientID:  "client-1",
			EventType: entities.AuditEventAuth,
			Action:    "sign_in",
			Status:    entities.AuditStatusSuccess,
			CreatedAt: time.Now().Add(time.Duration(-i) * time.Hour),
		}
		require.NoError(t, repo.LogEvent(ctx, event))
	}

	for i := 0; i < 5; i++ {
		event := &entities.AuditEvent{
			ClientID:  "client-2",
			EventType: entities.AuditEventAuth,
			Action:    "sign_in",
			Status:    entities.AuditStatusFailed,
			ErrorCode: "auth/invalid-credential",
		}
		require.NoError(t, repo.LogEvent(ctx, event))
	}

	t.Run("get all events", func(t *testing.T) {
		events, total, err := repo.GetEvents(ctx, Filter{}, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(20), total)
		assert.Len(t, events, 20)
	})

	t.Run("filter by uid", func(t *testing.T) {
		events, total, err := repo.GetEvents(ctx, Filter{UID: "uid-1"}, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
		assert.Len(t, events, 15)
	})

	t.Run("filter by status", func(t *testing.T) {
		events, total, err := repo.GetEvents(ctx, Filter{Status: entities.AuditStatusFailed}, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		for _, e := range events {
			assert.Equal(t, "client-2", e.ClientID)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		events, total, err := repo.GetEvents(ctx, Filter{ClientID: "client-1"}, 10, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
		assert.Len(t, events, 5)
	})

	t.Run("most recent first", func(t *testing.T) {
		events, _, err := repo.GetEvents(ctx, Filter{ClientID: "client-1"}, 2, 0)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.True(t, events[0].CreatedAt.After(events[1].CreatedAt))
	})
}

func TestRepository_DeleteOldEvents(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRepository(db)

	for _, age := range []time.Duration{0, 24 * time.Hour, 40 * 24 * time.Hour, 60 * 24 * time.Hour} {
		require.NoError(t, repo.LogEvent(ctx, &entities.AuditEvent{
			EventType: entities.AuditEventAuth,
			Action:    "logout",
			Status:    entities.AuditStatusSuccess,
			CreatedAt: time.Now().Add(-age),
		}))
	}

	deleted, err := repo.DeleteOldEvents(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, total, err := repo.GetEvents(ctx, Filter{}, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}
