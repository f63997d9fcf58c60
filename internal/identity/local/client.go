package local

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/mrlokans/healthbook/internal/entities"
	"github.com/mrlokans/healthbook/internal/identity"
)

var errClientClosed = errors.New("identity client is closed")

// notification is one pending listener call. A zero target goes to every
// listener registered at delivery time.
type notification struct {
	target   uint64
	identity *entities.Identity
}

// Client is the identity service as seen by one application client.
// State changes are announced from a single dispatcher goroutine, so every
// listener observes them in the order they happened.
type Client struct {
	backend  *Backend
	clientID string

	mu      sync.Mutex // guards current and closed, and orders the queue
	current *entities.Identity
	closed  bool

	listenersMu sync.RWMutex
	listeners   map[uint64]identity.Listener
	nextID      uint64

	queue chan notification
	done  chan struct{}
	wg    sync.WaitGroup
}

var _ identity.Service = (*Client)(nil)

func newClient(b *Backend, clientID string, current *entities.Identity) *Client {
	c := &Client{
		backend:   b,
		clientID:  clientID,
		current:   current,
		listeners: make(map[uint64]identity.Listener),
		queue:     make(chan notification, 64),
		done:      make(chan struct{}),
	}

	c.wg.Add(1)
	go c.dispatch()

	return c
}

// ID returns the application client id this client is bound to.
func (c *Client) ID() string {
	return c.clientID
}

// Current returns the signed-in identity, or nil.
func (c *Client) Current() *entities.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

func (c *Client) Subscribe(listener identity.Listener) identity.Unsubscribe {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return func() {}
	}

	c.listenersMu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = listener
	c.listenersMu.Unlock()

	c.enqueue(notification{target: id, identity: c.current.Clone()})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.listenersMu.Lock()
			delete(c.listeners, id)
			c.listenersMu.Unlock()
		})
	}
}

func (c *Client) SignInWithCredentials(ctx context.Context, email, password string) error {
	if c.isClosed() {
		return identity.Internal(errClientClosed)
	}

	acct, err := c.backend.verifyCredentials(ctx, email, password)
	if err != nil {
		return err
	}
	if err := c.backend.persistSignIn(ctx, c.clientID, acct.UID); err != nil {
		return err
	}

	c.setCurrent(acct.Identity())
	c.backend.logger.Debug("client signed in",
		zap.String("client_id", c.clientID),
		zap.String("uid", acct.UID))
	return nil
}

func (c *Client) CreateCredentialedIdentity(ctx context.Context, email, password string) (*entities.Identity, error) {
	if c.isClosed() {
		return nil, identity.Internal(errClientClosed)
	}

	acct, err := c.backend.createAccount(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := c.backend.persistSignIn(ctx, c.clientID, acct.UID); err != nil {
		return nil, err
	}

	id := acct.Identity()
	c.setCurrent(id)
	return id.Clone(), nil
}

// SetDisplayName updates the stored name. When id is the signed-in identity
// the updated identity is announced to listeners.
func (c *Client) SetDisplayName(ctx context.Context, id *entities.Identity, name string) error {
	if c.isClosed() {
		return identity.Internal(errClientClosed)
	}
	if id == nil || id.UID == "" {
		return identity.ErrUserNotFound
	}

	acct, err := c.backend.updateDisplayName(ctx, id.UID, name)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.UID == acct.UID && !c.closed {
		c.current = acct.Identity()
		c.enqueue(notification{identity: c.current.Clone()})
	}
	return nil
}

// SignOut clears the persisted sign-in. Listeners are only notified when
// the client was signed in.
func (c *Client) SignOut(ctx context.Context) error {
	if c.isClosed() {
		return identity.Internal(errClientClosed)
	}

	if err := c.backend.clearSignIn(ctx, c.clientID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && !c.closed {
		c.current = nil
		c.enqueue(notification{})
	}
	return nil
}

// Close stops the dispatcher. Pending notifications are dropped and
// further operations fail.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) setCurrent(id *entities.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.current = id
	c.enqueue(notification{identity: id.Clone()})
}

// enqueue must be called with c.mu held.
func (c *Client) enqueue(n notification) {
	select {
	case c.queue <- n:
	case <-c.done:
	}
}

func (c *Client) dispatch() {
	defer c.wg.Done()

	for {
		select {
		case n := <-c.queue:
			c.deliver(n)
		case <-c.done:
			return
		}
	}
}

func (c *Client) deliver(n notification) {
	c.listenersMu.RLock()
	var targets []identity.Listener
	if n.target != 0 {
		if l, ok := c.listeners[n.target]; ok {
			targets = append(targets, l)
		}
	} else {
		for _, l := range c.listeners {
			targets = append(targets, l)
		}
	}
	c.listenersMu.RUnlock()

	for _, l := range targets {
		l(n.identity.Clone())
	}
}
