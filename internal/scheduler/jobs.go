package scheduler

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"
)

// Evictor tears down providers that have not been used for maxIdle.
type Evictor interface {
	EvictIdle(maxIdle time.Duration) int
}

// Enqueuer adds tasks to the background queue.
type Enqueuer interface {
	Add(tasks ...backlite.Task) *backlite.TaskAddOp
}

// EvictIdleJob evicts idle session providers.
func EvictIdleJob(schedule string, evictor Evictor, maxIdle time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "evict_idle_providers",
		Schedule: schedule,
		Run: func(context.Context) {
			if n := evictor.EvictIdle(maxIdle); n > 0 {
				logger.Info("evicted idle session providers",
					zap.Int("count", n),
					zap.Duration("max_idle", maxIdle))
			}
		},
	}
}

// EnqueueJob adds task to the queue on every run.
func EnqueueJob(name, schedule string, enqueuer Enqueuer, task backlite.Task, logger *zap.Logger) Job {
	return Job{
		Name:     name,
		Schedule: schedule,
		Run: func(context.Context) {
			ids, err := enqueuer.Add(task).Save()
			if err != nil {
				logger.Error("failed to enqueue task", zap.String("job", name), zap.Error(err))
				return
			}
			logger.Debug("task enqueued", zap.String("job", name), zap.Strings("ids", ids))
		},
	}
}

// FuncJob runs fn inline, for deployments with the task queue disabled.
func FuncJob(name, schedule string, fn func(ctx context.Context) error, logger *zap.Logger) Job {
	return Job{
		Name:     name,
		Schedule: schedule,
		Run: func(ctx context.Context) {
			if err := fn(ctx); err != nil {
				logger.Error("job failed", zap.String("job", name), zap.Error(err))
			}
		},
	}
}
