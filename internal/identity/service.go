// Package identity defines the contract of the identity service the session
// provider delegates to, and the errors that service reports.
//
// Implementations own credential verification, password storage and the
// signed-in state. They announce every change of that state to subscribers:
//
//	unsubscribe := svc.Subscribe(func(id *entities.Identity) {
//		// id is nil when nobody is signed in
//	})
//	defer unsubscribe()
package identity

import (
	"context"

	"github.com/mrlokans/healthbook/internal/entities"
)

// Listener receives the signed-in identity, or nil when signed out.
// Listeners must not call back into the Service that invokes them.
type Listener func(*entities.Identity)

// Unsubscribe removes a listener. Calling it more than once is harmless.
type Unsubscribe func()

// Service is the identity backend as seen by one application client.
type Service interface {
	// Subscribe registers a listener. The current state is delivered
	// asynchronously shortly after registration, then every change in order.
	Subscribe(listener Listener) Unsubscribe

	// SignInWithCredentials verifies email and password and signs the client in.
	SignInWithCredentials(ctx context.Context, email, password string) error

	// CreateCredentialedIdentity registers a new account and signs the client in as it.
	CreateCredentialedIdentity(ctx context.Context, email, password string) (*entities.Identity, error)

	// SetDisplayName updates the display name of an existing identity.
	SetDisplayName(ctx context.Context, id *entities.Identity, name string) error

	// SignOut signs the client out.
	SignOut(ctx context.Context) error
}
