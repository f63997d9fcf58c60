package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/healthbook/internal/clients"
	"github.com/mrlokans/healthbook/internal/session"
	"github.com/mrlokans/healthbook/internal/web"
)

const contextKeyClientID = "client_id"

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if id := c.GetString(contextKeyClientID); id != "" {
			fields = append(fields, zap.String("client_id", id))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// ClientMiddleware binds the browser session to its client and injects
// that client's session provider into the request. Must run after the
// session load/save middleware.
func ClientMiddleware(sessions *web.SessionManager, registry *clients.Registry, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, created, err := sessions.EnsureClientID(c.Request)
		if err != nil {
			respondInternalError(c, logger, err, "assign client id")
			c.Abort()
			return
		}
		if created {
			logger.Debug("assigned client id", zap.String("client_id", clientID))
		}

		provider, release, err := registry.Acquire(c.Request.Context(), clientID)
		if err != nil {
			if errors.Is(err, clients.ErrClosed) {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Error: "server is shutting down"})
				return
			}
			respondInternalError(c, logger, err, "open client")
			c.Abort()
			return
		}

		defer release()

		c.Set(contextKeyClientID, clientID)
		session.Inject(c, provider)
		c.Next()
	}
}
