package http

import (
	"go.uber.org/zap"

	"github.com/mrlokans/healthbook/internal/audit"
	"github.com/mrlokans/healthbook/internal/clients"
	"github.com/mrlokans/healthbook/internal/web"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Registry *clients.Registry
	Sessions *web.SessionManager
	Audit    *audit.Service // optional
	Logger   *zap.Logger

	// Health checks, keyed by the name reported in /health
	Checks map[string]Pinger

	// CSRF protection, disabled when the secret is empty
	CSRFSecret    []byte
	SecureCookies bool

	// Application info
	Version string
}
