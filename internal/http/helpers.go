package http

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/healthbook/internal/docstore"
	"github.com/mrlokans/healthbook/internal/identity"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // additional context
}

// CodeStoreWriteFailed is reported when the profile document could not be written.
const CodeStoreWriteFailed = "store/write-failed"

// --- Error Response Helpers ---

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

// respondInternalError logs the error and sends a 500 Internal Server Error response.
// The actual error is logged but not exposed to the client.
func respondInternalError(c *gin.Context, logger *zap.Logger, err error, context string) {
	logger.Error("internal error", zap.String("context", context), zap.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// respondServiceError maps an identity or store failure onto an HTTP
// response. Identity errors keep their code so clients can branch on it.
func respondServiceError(c *gin.Context, logger *zap.Logger, err error, context string) {
	status := errorStatus(err)

	var idErr *identity.Error
	if errors.As(err, &idErr) {
		if idErr.Code == identity.CodeInternal {
			respondInternalError(c, logger, err, context)
			return
		}
		if idErr.RetryAfter > 0 {
			secs := int(math.Ceil(idErr.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(secs))
		}
		msg := idErr.Message
		if msg == "" {
			msg = string(idErr.Code)
		}
		c.JSON(status, ErrorResponse{Error: msg, Code: string(idErr.Code)})
		return
	}

	var storeErr *docstore.Error
	if errors.As(err, &storeErr) {
		logger.Error("document write failed", zap.String("context", context), zap.Error(err))
		c.JSON(status, ErrorResponse{
			Error: "failed to save user profile",
			Code:  CodeStoreWriteFailed,
			Details: gin.H{
				"collection": storeErr.Collection,
			},
		})
		return
	}

	if status == http.StatusGatewayTimeout {
		c.JSON(status, ErrorResponse{Error: "request timed out"})
		return
	}
	respondInternalError(c, logger, err, context)
}

// errorStatus picks the HTTP status for a service error.
func errorStatus(err error) int {
	switch identity.CodeOf(err) {
	case identity.CodeInvalidCredential:
		return http.StatusUnauthorized
	case identity.CodeEmailAlreadyInUse:
		return http.StatusConflict
	case identity.CodeWeakPassword, identity.CodeInvalidEmail:
		return http.StatusBadRequest
	case identity.CodeTooManyRequests:
		return http.StatusTooManyRequests
	case identity.CodeUserNotFound:
		return http.StatusNotFound
	case identity.CodeNetworkRequestFailed:
		return http.StatusServiceUnavailable
	case identity.CodeInternal:
		return http.StatusInternalServerError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
