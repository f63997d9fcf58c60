package session

import (
	"context"

	"github.com/gin-gonic/gin"
)

// ContextKeyProvider is the gin context key holding the request's Provider.
const ContextKeyProvider = "session_provider"

type contextKey struct{}

// NewContext returns a copy of ctx carrying p.
func NewContext(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the Provider stored by NewContext.
func FromContext(ctx context.Context) (*Provider, bool) {
	p, ok := ctx.Value(contextKey{}).(*Provider)
	return p, ok && p != nil
}

// Inject makes p available to the remaining handlers of the request.
func Inject(c *gin.Context, p *Provider) {
	c.Set(ContextKeyProvider, p)
	c.Request = c.Request.WithContext(NewContext(c.Request.Context(), p))
}

// Get retrieves the Provider injected for this request.
func Get(c *gin.Context) (*Provider, bool) {
	if v, exists := c.Get(ContextKeyProvider); exists {
		if p, ok := v.(*Provider); ok && p != nil {
			return p, true
		}
	}
	return nil, false
}

// MustGet is Get for handlers mounted behind the client middleware.
// It panics when no Provider was injected.
func MustGet(c *gin.Context) *Provider {
	p, ok := Get(c)
	if !ok {
		panic("session: no provider in request context")
	}
	return p
}
