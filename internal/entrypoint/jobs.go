package entrypoint

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/healthbook/internal/audit"
	"github.com/mrlokans/healthbook/internal/clients"
	"github.com/mrlokans/healthbook/internal/config"
	"github.com/mrlokans/healthbook/internal/identity/local"
	"github.com/mrlokans/healthbook/internal/scheduler"
	"github.com/mrlokans/healthbook/internal/tasks"
)

// newScheduler registers the maintenance jobs. With a task client the
// cleanups go through the queue, otherwise they run inline.
func newScheduler(cfg *config.Config, registry *clients.Registry, backend *local.Backend,
	auditService *audit.Service, taskClient *tasks.Client, logger *zap.Logger) (*scheduler.Scheduler, error) {
	s := scheduler.New(logger)

	jobs := []scheduler.Job{
		scheduler.EvictIdleJob(cfg.Clients.EvictSchedule, registry, cfg.Clients.IdleTimeout, logger),
	}

	retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
	if taskClient != nil {
		jobs = append(jobs,
			scheduler.EnqueueJob("cleanup_audit_events", cfg.Audit.CleanupSchedule, taskClient,
				tasks.CleanupAuditEventsTask{RetentionDays: cfg.Audit.RetentionDays}, logger),
			scheduler.EnqueueJob("purge_expired_sign_ins", cfg.Auth.SignInPurgeSchedule, taskClient,
				tasks.PurgeSignInsTask{}, logger),
		)
	} else {
		jobs = append(jobs,
			scheduler.FuncJob("cleanup_audit_events", cfg.Audit.CleanupSchedule, func(ctx context.Context) error {
				_, err := auditService.DeleteOldEvents(ctx, retention)
				return err
			}, logger),
			scheduler.FuncJob("purge_expired_sign_ins", cfg.Auth.SignInPurgeSchedule, func(ctx context.Context) error {
				_, err := backend.PurgeExpiredSignIns(ctx)
				return err
			}, logger),
		)
	}

	for _, job := range jobs {
		if err := s.Add(job); err != nil {
			return nil, err
		}
	}
	return s, nil
}
