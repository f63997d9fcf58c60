package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/healthbook/internal/audit"
	"github.com/mrlokans/healthbook/internal/clients"
	"github.com/mrlokans/healthbook/internal/config"
	"github.com/mrlokans/healthbook/internal/database"
	auditrepo "github.com/mrlokans/healthbook/internal/database/audit"
	http_controllers "github.com/mrlokans/healthbook/internal/http"
	"github.com/mrlokans/healthbook/internal/identity/local"
	"github.com/mrlokans/healthbook/internal/logging"
	"github.com/mrlokans/healthbook/internal/session"
	"github.com/mrlokans/healthbook/internal/tasks"
	"github.com/mrlokans/healthbook/internal/web"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, logger *zap.Logger, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server", zap.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting requests before tearing down what they depend on
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	logger.Info("server exiting")
}

func Run(cfg *config.Config, version string) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting healthbook", zap.String("version", version))

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path,
		database.WithLogger(logger),
		database.WithLogLevel(logging.GormLevel(cfg.Log)),
	)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database", zap.Error(err))
		}
	}()

	backend := local.NewBackend(db.DB, cfg.Auth, local.WithLogger(logger.Named("identity")))
	defer backend.Close()

	store, err := openStore(cfg.Store, db, logger)
	if err != nil {
		logger.Fatal("failed to open document store", zap.Error(err))
	}
	defer func() {
		if err := store.close(); err != nil {
			logger.Error("error closing document store", zap.Error(err))
		}
	}()

	auditService := audit.NewService(auditrepo.NewRepository(db.DB), logger.Named("audit"))
	defer auditService.Wait()

	registry := clients.New(clients.BackendOpener(backend), store,
		clients.WithLogger(logger.Named("clients")),
		clients.WithProviderOptions(session.WithLogger(logger.Named("session"))),
		clients.WithEvictHook(func(clientID string, idle time.Duration) {
			auditService.LogSession(clientID, "evicted", fmt.Sprintf("idle for %s", idle.Round(time.Second)))
		}),
	)

	// Browser sessions live in the main database
	sqlDB, err := db.DB.DB()
	if err != nil {
		logger.Fatal("failed to get SQL DB for sessions", zap.Error(err))
	}
	sessions, err := web.NewSessionManager(sqlDB, cfg.Web)
	if err != nil {
		logger.Fatal("failed to initialize session manager", zap.Error(err))
	}

	var csrfSecret []byte
	if cfg.Web.CSRFEnabled {
		secret := cfg.Web.SessionSecret
		if secret == "" {
			secret, err = web.GenerateSessionSecret()
			if err != nil {
				logger.Fatal("failed to generate CSRF secret", zap.Error(err))
			}
			logger.Warn("generated session secret (set WEB_SESSION_SECRET to persist)")
		}
		csrfSecret = web.DecodeSessionSecret(secret)
	}

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.FromConfig(cfg.Tasks), logger)
		if err != nil {
			logger.Fatal("failed to initialize task queue", zap.Error(err))
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Error("error closing task client", zap.Error(err))
			}
		}()

		taskClient.Register(
			tasks.NewCleanupAuditEventsQueue(auditService, logger),
			tasks.NewPurgeSignInsQueue(backend, logger),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	sched, err := newScheduler(cfg, registry, backend, auditService, taskClient, logger)
	if err != nil {
		logger.Fatal("failed to configure scheduler", zap.Error(err))
	}
	if err := sched.Start(context.Background()); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	checks := map[string]http_controllers.Pinger{"database": db}
	if store.pinger != nil {
		checks["store"] = store.pinger
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Registry:      registry,
		Sessions:      sessions,
		Audit:         auditService,
		Logger:        logger.Named("http"),
		Checks:        checks,
		CSRFSecret:    csrfSecret,
		SecureCookies: cfg.Web.SecureCookies,
		Version:       version,
	})

	// Shutdown callback for graceful cleanup
	onShutdown := func(ctx context.Context) {
		sched.Stop()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
		registry.Close()
	}

	Serve(router, cfg, logger, onShutdown)
}
