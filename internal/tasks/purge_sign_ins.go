package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"
)

// SignInPurger deletes persisted sign-ins past their expiry.
type SignInPurger interface {
	PurgeExpiredSignIns(ctx context.Context) (int64, error)
}

// PurgeSignInsTask removes expired persisted sign-ins.
type PurgeSignInsTask struct{}

// Config returns the queue configuration for sign-in purge tasks.
func (t PurgeSignInsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "purge_expired_sign_ins",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// PurgeSignInsProcessor creates a processor function for PurgeSignInsTask.
func PurgeSignInsProcessor(purger SignInPurger, logger *zap.Logger) backlite.QueueProcessor[PurgeSignInsTask] {
	return func(ctx context.Context, task PurgeSignInsTask) error {
		if purger == nil {
			return fmt.Errorf("sign-in purger not configured")
		}

		deleted, err := purger.PurgeExpiredSignIns(ctx)
		if err != nil {
			return fmt.Errorf("purge expired sign-ins: %w", err)
		}

		logger.Info("purged expired sign-ins", zap.Int64("deleted", deleted))
		return nil
	}
}

// NewPurgeSignInsQueue creates a backlite queue for sign-in purge tasks.
func NewPurgeSignInsQueue(purger SignInPurger, logger *zap.Logger) backlite.Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return backlite.NewQueue(PurgeSignInsProcessor(purger, logger))
}
