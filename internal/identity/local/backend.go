// Package local is a self-hosted identity backend. Accounts and persisted
// sign-ins live in the application database; each application client gets a
// Client that implements identity.Service and announces its sign-in state.
//
// # Usage
//
//	backend := local.NewBackend(db.DB, cfg.Auth, local.WithLogger(logger))
//	defer backend.Close()
//
//	client, err := backend.Client(ctx, clientID)
//	provider := session.NewProvider(client, store)
package local

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/healthbook/internal/config"
	"github.com/mrlokans/healthbook/internal/entities"
	"github.com/mrlokans/healthbook/internal/identity"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Backend holds state shared by all clients: the account directory,
// persisted sign-ins and the failed sign-in limiter.
type Backend struct {
	db      *gorm.DB
	config  config.Auth
	limiter *RateLimiter
	logger  *zap.Logger
	now     func() time.Time
}

type Option func(*Backend)

func WithLogger(logger *zap.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// NewBackend creates a backend on an already migrated database.
func NewBackend(db *gorm.DB, cfg config.Auth, opts ...Option) *Backend {
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = 6
	}
	if cfg.PersistenceLifetime <= 0 {
		cfg.PersistenceLifetime = 30 * 24 * time.Hour
	}

	b := &Backend{
		db:     db,
		config: cfg,
		limiter: NewRateLimiter(RateLimitConfig{
			MaxAttempts:     cfg.MaxLoginAttempts,
			WindowDuration:  cfg.RateLimitWindow,
			LockoutDuration: cfg.LockoutDuration,
		}),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.limiter.now = b.now
	return b
}

// Close stops background work. Clients must be closed separately.
func (b *Backend) Close() {
	b.limiter.Stop()
}

// Client returns a client bound to clientID, restoring its persisted sign-in.
func (b *Backend) Client(ctx context.Context, clientID string) (*Client, error) {
	if clientID == "" {
		return nil, errors.New("client id is required")
	}

	acct, err := b.restoreSignIn(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore sign-in for client %s: %w", clientID, err)
	}

	var current *entities.Identity
	if acct != nil {
		current = acct.Identity()
	}
	return newClient(b, clientID, current), nil
}

// PurgeExpiredSignIns deletes persisted sign-ins past their expiry.
func (b *Backend) PurgeExpiredSignIns(ctx context.Context) (int64, error) {
	result := b.db.WithContext(ctx).
		Where("expires_at <= ?", b.now()).
		Delete(&entities.SignIn{})
	return result.RowsAffected, result.Error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (b *Backend) createAccount(ctx context.Context, email, password string) (*entities.Account, error) {
	email = normalizeEmail(email)
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return nil, identity.ErrInvalidEmail
	}
	if len(password) < b.config.MinPasswordLength {
		return nil, &identity.Error{
			Code:    identity.CodeWeakPassword,
			Message: fmt.Sprintf("password must be at least %d characters", b.config.MinPasswordLength),
		}
	}

	var existing entities.Account
	err := b.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, identity.ErrEmailAlreadyInUse
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, identity.Internal(fmt.Errorf("failed to check existing account: %w", err))
	}

	hash, err := hashPassword(password, b.config.BcryptCost)
	if errors.Is(err, errPasswordTooLong) {
		return nil, &identity.Error{Code: identity.CodeWeakPassword, Message: err.Error()}
	}
	if err != nil {
		return nil, identity.Internal(fmt.Errorf("failed to hash password: %w", err))
	}

	now := b.now()
	acct := &entities.Account{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		LastSignInAt: &now,
	}
	// The lookup above races with concurrent sign-ups; the unique index decides
	if err := b.db.WithContext(ctx).Create(acct).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, identity.ErrEmailAlreadyInUse
		}
		return nil, identity.Internal(fmt.Errorf("failed to create account: %w", err))
	}

	b.logger.Info("account created", zap.String("uid", acct.UID))
	return acct, nil
}

// verifyCredentials checks email and password against the directory,
// feeding the limiter with the outcome.
func (b *Backend) verifyCredentials(ctx context.Context, email, password string) (*entities.Account, error) {
	email = normalizeEmail(email)

	if allowed, retryAfter := b.limiter.Allow(email); !allowed {
		b.logger.Warn("sign-in rate limited", zap.Duration("retry_after", retryAfter))
		return nil, &identity.Error{
			Code:       identity.CodeTooManyRequests,
			Message:    identity.ErrTooManyRequests.Message,
			RetryAfter: retryAfter,
		}
	}

	var acct entities.Account
	err := b.db.WithContext(ctx).Where("email = ?", email).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		b.limiter.RecordFailure(email)
		return nil, identity.ErrInvalidCredential
	}
	if err != nil {
		return nil, identity.Internal(fmt.Errorf("failed to find account: %w", err))
	}

	ok, err := checkPassword(password, acct.PasswordHash)
	if err != nil {
		return nil, identity.Internal(fmt.Errorf("failed to check password: %w", err))
	}
	if !ok {
		if locked, _ := b.limiter.RecordFailure(email); locked {
			b.logger.Warn("sign-in locked after repeated failures", zap.String("uid", acct.UID))
		}
		return nil, identity.ErrInvalidCredential
	}
	b.limiter.RecordSuccess(email)

	now := b.now()
	if err := b.db.WithContext(ctx).Model(&acct).Update("last_sign_in_at", now).Error; err != nil {
		return nil, identity.Internal(fmt.Errorf("failed to record sign-in: %w", err))
	}
	acct.LastSignInAt = &now

	return &acct, nil
}

func (b *Backend) updateDisplayName(ctx context.Context, uid, name string) (*entities.Account, error) {
	result := b.db.WithContext(ctx).
		Model(&entities.Account{}).
		Where("uid = ?", uid).
		Update("display_name", name)
	if result.Error != nil {
		return nil, identity.Internal(fmt.Errorf("failed to update display name: %w", result.Error))
	}
	if result.RowsAffected == 0 {
		return nil, identity.ErrUserNotFound
	}

	var acct entities.Account
	if err := b.db.WithContext(ctx).First(&acct, "uid = ?", uid).Error; err != nil {
		return nil, identity.Internal(fmt.Errorf("failed to reload account: %w", err))
	}
	return &acct, nil
}

func (b *Backend) persistSignIn(ctx context.Context, clientID, uid string) error {
	signIn := entities.SignIn{
		ClientID:  clientID,
		UID:       uid,
		ExpiresAt: b.now().Add(b.config.PersistenceLifetime),
	}
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"uid", "expires_at"}),
	}).Create(&signIn).Error
	if err != nil {
		return identity.Internal(fmt.Errorf("failed to persist sign-in: %w", err))
	}
	return nil
}

func (b *Backend) clearSignIn(ctx context.Context, clientID string) error {
	if err := b.db.WithContext(ctx).Delete(&entities.SignIn{}, "client_id = ?", clientID).Error; err != nil {
		return identity.Internal(fmt.Errorf("failed to clear sign-in: %w", err))
	}
	return nil
}

// restoreSignIn returns the account a client is still signed in as, or nil.
func (b *Backend) restoreSignIn(ctx context.Context, clientID string) (*entities.Account, error) {
	var signIn entities.SignIn
	err := b.db.WithContext(ctx).
		Where("client_id = ? AND expires_at > ?", clientID, b.now()).
		First(&signIn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var acct entities.Account
	err = b.db.WithContext(ctx).First(&acct, "uid = ?", signIn.UID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Account is gone; forget the dangling sign-in
		return nil, b.db.WithContext(ctx).Delete(&signIn).Error
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}
