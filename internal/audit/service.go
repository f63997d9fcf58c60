// Package audit records authentication and session lifecycle events.
package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/healthbook/internal/database/audit"
	"github.com/mrlokans/healthbook/internal/entities"
)

const asyncWriteTimeout = 5 * time.Second

// Service provides high-level audit logging functionality.
type Service struct {
	repo   *audit.Repository
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// Log records a generic audit event.
func (s *Service) Log(ctx context.Context, event *entities.AuditEvent) error {
	return s.repo.LogEvent(ctx, event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), asyncWriteTimeout)
		defer cancel()

		if err := s.repo.LogEvent(ctx, event); err != nil {
			s.logger.Error("failed to log audit event",
				zap.String("action", event.Action), zap.Error(err))
		}
	}()
}

// Wait blocks until pending asynchronous writes are done.
func (s *Service) Wait() {
	s.wg.Wait()
}

// AuthAttempt describes one sign-in, sign-up or logout request.
type AuthAttempt struct {
	UID       string
	ClientID  string
	Action    string
	IPAddress string
	UserAgent string
	ErrorCode string
	Err       error
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(a AuthAttempt) {
	event := &entities.AuditEvent{
		UID:       a.UID,
		ClientID:  a.ClientID,
		EventType: entities.AuditEventAuth,
		Action:    a.Action,
		IPAddress: a.IPAddress,
		UserAgent: truncate(a.UserAgent, 500),
		Status:    entities.AuditStatusSuccess,
	}

	if a.Err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorCode = a.ErrorCode
		event.ErrorMsg = truncate(a.Err.Error(), 500)
	}

	s.LogAsync(event)
}

// LogSession records a provider lifecycle event such as idle eviction.
func (s *Service) LogSession(clientID, action, description string) {
	s.LogAsync(&entities.AuditEvent{
		ClientID:    clientID,
		EventType:   entities.AuditEventSession,
		Action:      action,
		Description: truncate(description, 500),
		Status:      entities.AuditStatusSuccess,
	})
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(ctx context.Context, f audit.Filter, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(ctx, f, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(ctx, cutoff)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
