// Package session mirrors the identity service's sign-in state for one
// application client and mediates sign-in, sign-up and logout requests.
//
// The Provider registers a single listener with the identity service. The
// listener only forwards notifications over a channel; one owner goroutine
// applies them to the mirrored state, last write wins. Request operations
// never touch that state themselves: the identity service announces the
// outcome and the owner mirrors it.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/healthbook/internal/docstore"
	"github.com/mrlokans/healthbook/internal/entities"
	"github.com/mrlokans/healthbook/internal/identity"
)

// UsersCollection holds one profile document per identity, keyed by UID.
const UsersCollection = "users"

// Snapshot is the mirrored session state at one point in time.
type Snapshot struct {
	Identity  *entities.Identity `json:"identity"`
	Resolving bool               `json:"resolving"`
}

// SignedIn reports whether the snapshot carries an identity.
func (s Snapshot) SignedIn() bool {
	return s.Identity != nil
}

type Option func(*Provider)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithClock overrides the time source used for profile timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// Provider owns the session of one application client.
type Provider struct {
	auth   identity.Service
	store  docstore.Store
	logger *zap.Logger
	now    func() time.Time

	updates chan *entities.Identity
	done    chan struct{}
	wg      sync.WaitGroup

	mu          sync.RWMutex
	state       Snapshot
	closed      bool
	resolved    chan struct{}
	watchers    map[uint64]chan Snapshot
	nextWatcher uint64

	unsubscribe identity.Unsubscribe
	closeOnce   sync.Once
}

// NewProvider subscribes to auth and starts mirroring its state. The session
// is resolving until the first notification arrives. Close releases the
// subscription.
func NewProvider(auth identity.Service, store docstore.Store, opts ...Option) *Provider {
	p := &Provider{
		auth:     auth,
		store:    store,
		logger:   zap.NewNop(),
		now:      time.Now,
		updates:  make(chan *entities.Identity, 16),
		done:     make(chan struct{}),
		state:    Snapshot{Resolving: true},
		resolved: make(chan struct{}),
		watchers: make(map[uint64]chan Snapshot),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(1)
	go p.run()

	p.unsubscribe = auth.Subscribe(p.forward)

	return p
}

// forward runs on the identity service's goroutine and hands the
// notification to the owner.
func (p *Provider) forward(id *entities.Identity) {
	select {
	case p.updates <- id.Clone():
	case <-p.done:
	}
}

func (p *Provider) run() {
	defer p.wg.Done()

	for {
		select {
		case id := <-p.updates:
			p.apply(id)
		case <-p.done:
			return
		}
	}
}

func (p *Provider) apply(id *entities.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	if p.state.Resolving {
		close(p.resolved)
	}
	p.state = Snapshot{Identity: id}

	for _, ch := range p.watchers {
		offer(ch, p.snapshotLocked())
	}

	if id != nil {
		p.logger.Debug("session identity changed", zap.String("uid", id.UID))
	} else {
		p.logger.Debug("session signed out")
	}
}

// offer replaces any unread snapshot in ch with s.
func offer(ch chan Snapshot, s Snapshot) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

// snapshotLocked must be called with p.mu held.
func (p *Provider) snapshotLocked() Snapshot {
	return Snapshot{
		Identity:  p.state.Identity.Clone(),
		Resolving: p.state.Resolving,
	}
}

// Current returns the mirrored state.
func (p *Provider) Current() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

// Identity returns the signed-in identity, or nil.
func (p *Provider) Identity() *entities.Identity {
	return p.Current().Identity
}

// Resolving reports whether the first notification is still outstanding.
func (p *Provider) Resolving() bool {
	return p.Current().Resolving
}

// Resolved is closed once the first notification has been mirrored.
func (p *Provider) Resolved() <-chan struct{} {
	return p.resolved
}

// WaitResolved blocks until the session is resolved and returns its state.
// It returns the context's error if that comes first, or the unresolved
// state if the provider is closed while waiting.
func (p *Provider) WaitResolved(ctx context.Context) (Snapshot, error) {
	select {
	case <-p.resolved:
	case <-p.done:
	case <-ctx.Done():
		return p.Current(), ctx.Err()
	}
	return p.Current(), nil
}

// Watch returns a channel that receives the current state and then every
// change. A slow reader only sees the latest state. The channel is closed
// by cancel or when the provider is closed.
func (p *Provider) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	p.nextWatcher++
	id := p.nextWatcher
	p.watchers[id] = ch
	ch <- p.snapshotLocked()
	p.mu.Unlock()

	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.watchers[id]; ok {
			delete(p.watchers, id)
			close(ch)
		}
	}
}

// SignIn asks the identity service to sign in. The session reflects the
// new identity once the service announces it, which may be after SignIn
// returns.
func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	return p.auth.SignInWithCredentials(ctx, email, password)
}

// SignUp creates the identity, names it and writes its profile document,
// stopping at the first failure. An identity created before a later step
// fails is left in place.
func (p *Provider) SignUp(ctx context.Context, email, password, name string) error {
	id, err := p.auth.CreateCredentialedIdentity(ctx, email, password)
	if err != nil {
		return err
	}
	if id == nil {
		return identity.Internal(errors.New("identity service returned no identity"))
	}

	if err := p.auth.SetDisplayName(ctx, id, name); err != nil {
		p.logger.Warn("sign-up incomplete: display name not set",
			zap.String("uid", id.UID), zap.Error(err))
		return err
	}

	record := entities.NewUserProfileRecord(name, email, p.now())
	if err := p.store.WriteDocument(ctx, UsersCollection, id.UID, record); err != nil {
		p.logger.Warn("sign-up incomplete: profile not written",
			zap.String("uid", id.UID), zap.Error(err))
		return err
	}

	p.logger.Info("user signed up", zap.String("uid", id.UID))
	return nil
}

// Logout asks the identity service to sign out.
func (p *Provider) Logout(ctx context.Context) error {
	return p.auth.SignOut(ctx)
}

// Close unsubscribes from the identity service and stops mirroring.
// Watch channels are closed. It is safe to call more than once.
func (p *Provider) Close() {
	p.closeOnce.Do(func() {
		if p.unsubscribe != nil {
			p.unsubscribe()
		}

		p.mu.Lock()
		p.closed = true
		for id, ch := range p.watchers {
			delete(p.watchers, id)
			close(ch)
		}
		p.mu.Unlock()

		close(p.done)
		p.wg.Wait()
	})
}
