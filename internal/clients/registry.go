// Package clients keeps one session provider per application client.
//
// A browser is an application client: it gets its own identity service
// view and its own Provider mirroring that view. Entries are created on
// first use and torn down after sitting idle.
package clients

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/healthbook/internal/docstore"
	"github.com/mrlokans/healthbook/internal/identity"
	"github.com/mrlokans/healthbook/internal/identity/local"
	"github.com/mrlokans/healthbook/internal/session"
)

var ErrClosed = errors.New("client registry is closed")

// Service is an identity service bound to a single client.
type Service interface {
	identity.Service
	Close()
}

// Opener creates the identity service for a client.
type Opener func(ctx context.Context, clientID string) (Service, error)

// BackendOpener opens clients of the local identity backend.
func BackendOpener(b *local.Backend) Opener {
	return func(ctx context.Context, clientID string) (Service, error) {
		c, err := b.Client(ctx, clientID)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

type entry struct {
	service  Service
	provider *session.Provider
	lastUsed time.Time
	inUse    int
}

func (e *entry) close() {
	e.provider.Close()
	e.service.Close()
}

type Option func(*Registry)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock overrides the time source used for idle tracking.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithProviderOptions passes options to every Provider the registry creates.
func WithProviderOptions(opts ...session.Option) Option {
	return func(r *Registry) {
		r.providerOpts = append(r.providerOpts, opts...)
	}
}

// WithEvictHook registers fn to be called for every evicted client.
func WithEvictHook(fn func(clientID string, idle time.Duration)) Option {
	return func(r *Registry) {
		r.onEvict = fn
	}
}

// Registry maps client ids to their session providers.
type Registry struct {
	open         Opener
	store        docstore.Store
	providerOpts []session.Option
	logger       *zap.Logger
	now          func() time.Time
	onEvict      func(clientID string, idle time.Duration)

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

func New(open Opener, store docstore.Store, opts ...Option) *Registry {
	r := &Registry{
		open:    open,
		store:   store,
		logger:  zap.NewNop(),
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the provider of clientID, creating it on first use.
func (r *Registry) Get(ctx context.Context, clientID string) (*session.Provider, error) {
	e, err := r.get(ctx, clientID, false)
	if err != nil {
		return nil, err
	}
	return e.provider, nil
}

// Acquire is Get for the span of a request. The provider is not evicted
// until release is called; release may be called more than once.
func (r *Registry) Acquire(ctx context.Context, clientID string) (*session.Provider, func(), error) {
	e, err := r.get(ctx, clientID, true)
	if err != nil {
		return nil, nil, err
	}
	var once sync.Once
	release := func() {
		once.Do(func() { r.release(e) })
	}
	return e.provider, release, nil
}

func (r *Registry) release(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.inUse--
	e.lastUsed = r.now()
}

func (r *Registry) get(ctx context.Context, clientID string, hold bool) (*entry, error) {
	if clientID == "" {
		return nil, errors.New("client id is required")
	}

	if e, err := r.lookup(clientID, hold); e != nil || err != nil {
		return e, err
	}

	// Open outside the lock; restoring a client hits the database
	svc, err := r.open(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to open identity client: %w", err)
	}
	created := &entry{
		service:  svc,
		provider: session.NewProvider(svc, r.store, r.providerOpts...),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		created.close()
		return nil, ErrClosed
	}
	if e, ok := r.entries[clientID]; ok {
		// Lost a race with a concurrent Get
		e.touch(r.now(), hold)
		r.mu.Unlock()
		created.close()
		return e, nil
	}
	created.touch(r.now(), hold)
	r.entries[clientID] = created
	r.mu.Unlock()

	r.logger.Debug("session provider created", zap.String("client_id", clientID))
	return created, nil
}

func (r *Registry) lookup(clientID string, hold bool) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	e, ok := r.entries[clientID]
	if !ok {
		return nil, nil
	}
	e.touch(r.now(), hold)
	return e, nil
}

// touch must be called with the registry lock held.
func (e *entry) touch(now time.Time, hold bool) {
	e.lastUsed = now
	if hold {
		e.inUse++
	}
}

// Len returns the number of live providers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Remove tears down the provider of clientID, if any.
func (r *Registry) Remove(clientID string) bool {
	r.mu.Lock()
	e, ok := r.entries[clientID]
	delete(r.entries, clientID)
	r.mu.Unlock()

	if ok {
		e.close()
	}
	return ok
}

// EvictIdle tears down providers unused for longer than maxIdle and
// returns how many were removed. Providers held through Acquire are
// skipped. Persisted sign-ins are kept, so an evicted browser is restored
// on its next request.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	now := r.now()

	type evicted struct {
		clientID string
		idle     time.Duration
		entry    *entry
	}
	var victims []evicted

	r.mu.Lock()
	for id, e := range r.entries {
		if e.inUse > 0 {
			continue
		}
		if idle := now.Sub(e.lastUsed); idle > maxIdle {
			victims = append(victims, evicted{clientID: id, idle: idle, entry: e})
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, v := range victims {
		v.entry.close()
		r.logger.Debug("session provider evicted",
			zap.String("client_id", v.clientID),
			zap.Duration("idle", v.idle))
		if r.onEvict != nil {
			r.onEvict(v.clientID, v.idle)
		}
	}
	return len(victims)
}

// Close tears down every provider. Later Gets fail with ErrClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.close()
	}
}
