package entrypoint

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/healthbook/internal/audit"
	"github.com/mrlokans/healthbook/internal/clients"
	"github.com/mrlokans/healthbook/internal/config"
	"github.com/mrlokans/healthbook/internal/database"
	auditrepo "github.com/mrlokans/healthbook/internal/database/audit"
	"github.com/mrlokans/healthbook/internal/docstore/memstore"
	"github.com/mrlokans/healthbook/internal/docstore/sqlstore"
	"github.com/mrlokans/healthbook/internal/identity/local"
	"github.com/mrlokans/healthbook/internal/tasks"
)

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "app.db"), database.WithLogLevel(logger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenStore(t *testing.T) {
	db := setupTestDB(t)

	t.Run("sqlite is the default", func(t *testing.T) {
		store, err := openStore(config.Store{}, db, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &sqlstore.Store{}, store.Store)
		assert.Same(t, db, store.pinger)
		assert.NoError(t, store.close())
	})

	t.Run("memory", func(t *testing.T) {
		store, err := openStore(config.Store{Backend: config.StoreBackendMemory}, db, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &memstore.Store{}, store.Store)
		assert.Nil(t, store.pinger)
	})

	t.Run("unreachable redis", func(t *testing.T) {
		_, err := openStore(config.Store{Backend: config.StoreBackendRedis, RedisAddr: "127.0.0.1:1"}, db, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := openStore(config.Store{Backend: "etcd"}, db, zap.NewNop())
		assert.ErrorContains(t, err, "etcd")
	})
}

func TestNewScheduler(t *testing.T) {
	db := setupTestDB(t)

	backend := local.NewBackend(db.DB, config.Auth{BcryptCost: bcrypt.MinCost})
	t.Cleanup(backend.Close)
	registry := clients.New(clients.BackendOpener(backend), memstore.New())
	t.Cleanup(registry.Close)
	auditService := audit.NewService(auditrepo.NewRepository(db.DB), nil)

	cfg := config.NewConfig()
	jobNames := []string{"evict_idle_providers", "cleanup_audit_events", "purge_expired_sign_ins"}

	t.Run("inline jobs without a task queue", func(t *testing.T) {
		s, err := newScheduler(cfg, registry, backend, auditService, nil, zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, s.Start(context.Background()))
		defer s.Stop()

		for _, name := range jobNames {
			require.Eventually(t, func() bool { return s.NextRun(name) != nil }, time.Second, 10*time.Millisecond, name)
		}
	})

	t.Run("queued jobs with a task queue", func(t *testing.T) {
		taskClient, err := tasks.NewClient(filepath.Join(t.TempDir(), "app.db"), tasks.DefaultConfig(), zap.NewNop())
		require.NoError(t, err)
		defer taskClient.Close()

		s, err := newScheduler(cfg, registry, backend, auditService, taskClient, zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, s.Start(context.Background()))
		defer s.Stop()

		for _, name := range jobNames {
			require.Eventually(t, func() bool { return s.NextRun(name) != nil }, time.Second, 10*time.Millisecond, name)
		}
	})

	t.Run("invalid schedule", func(t *testing.T) {
		bad := *cfg
		bad.Clients.EvictSchedule = "every now and then"

		_, err := newScheduler(&bad, registry, backend, auditService, nil, zap.NewNop())
		assert.Error(t, err)
	})
}
