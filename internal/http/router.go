package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/healthbook/internal/web"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(RequestLogger(logger))
	router.Use(gin.Recovery())

	// Apply security headers to all responses
	router.Use(web.SecurityHeadersMiddleware())
	if cfg.SecureCookies {
		router.Use(web.StrictTransportSecurityMiddleware())
	}

	health := NewHealthController(cfg.Checks, cfg.Registry.Len, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)

	api := router.Group("/api")

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		api.Use(web.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies))
	}
	// Session runs after CSRF so session context isn't overwritten by CSRF's request replacement
	api.Use(cfg.Sessions.SessionLoadSave())
	api.Use(ClientMiddleware(cfg.Sessions, cfg.Registry, logger))

	auth := NewAuthController(cfg.Audit, logger)
	api.GET("/csrf", auth.CSRFToken)
	api.GET("/session", auth.Session)
	api.POST("/auth/signin", auth.SignIn)
	api.POST("/auth/signup", auth.SignUp)
	api.POST("/auth/logout", auth.Logout)

	return router
}
