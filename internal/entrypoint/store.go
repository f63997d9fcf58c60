package entrypoint

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mrlokans/healthbook/internal/config"
	"github.com/mrlokans/healthbook/internal/database"
	"github.com/mrlokans/healthbook/internal/docstore"
	"github.com/mrlokans/healthbook/internal/docstore/memstore"
	"github.com/mrlokans/healthbook/internal/docstore/redisstore"
	"github.com/mrlokans/healthbook/internal/docstore/sqlstore"
	http_controllers "github.com/mrlokans/healthbook/internal/http"
)

// documentStore is the configured profile store plus what the health
// endpoint should probe and how to release it.
type documentStore struct {
	docstore.Store
	pinger http_controllers.Pinger
	close  func() error
}

func openStore(cfg config.Store, db *database.Database, logger *zap.Logger) (*documentStore, error) {
	switch cfg.Backend {
	case config.StoreBackendSQLite, "":
		logger.Info("document store: sqlite")
		return &documentStore{
			Store:  sqlstore.New(db.DB),
			pinger: db,
			close:  func() error { return nil },
		}, nil

	case config.StoreBackendRedis:
		client, err := redisstore.Connect(cfg)
		if err != nil {
			return nil, err
		}
		store := redisstore.New(client, cfg.RedisPrefix)
		logger.Info("document store: redis", zap.String("addr", cfg.RedisAddr))
		return &documentStore{Store: store, pinger: store, close: store.Close}, nil

	case config.StoreBackendMemory:
		logger.Warn("document store: memory, profiles are lost on restart")
		return &documentStore{
			Store: memstore.New(),
			close: func() error { return nil },
		}, nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
