package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/healthbook/internal/audit"
	"github.com/mrlokans/healthbook/internal/entities"
	"github.com/mrlokans/healthbook/internal/identity"
	"github.com/mrlokans/healthbook/internal/session"
	"github.com/mrlokans/healthbook/internal/web"
)

const (
	// resolveTimeout bounds GET /api/session?wait=1.
	resolveTimeout = 5 * time.Second
	// settleTimeout bounds how long a mutation waits for the session to
	// mirror its outcome before responding with whatever state it has.
	settleTimeout = 2 * time.Second
)

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// SessionResponse is the client-visible session state.
type SessionResponse struct {
	Resolving bool               `json:"resolving"`
	SignedIn  bool               `json:"signed_in"`
	User      *entities.Identity `json:"user"`
}

func asSessionResponse(s session.Snapshot) SessionResponse {
	return SessionResponse{
		Resolving: s.Resolving,
		SignedIn:  s.SignedIn(),
		User:      s.Identity,
	}
}

type CSRFResponse struct {
	Token  string `json:"token"`
	Header string `json:"header"`
}

// AuthController exposes the session provider of the calling client.
type AuthController struct {
	audit  *audit.Service
	logger *zap.Logger
}

func NewAuthController(auditService *audit.Service, logger *zap.Logger) *AuthController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthController{audit: auditService, logger: logger}
}

// Session returns the current session. With ?wait=1 it first waits for
// the initial identity resolution.
func (ac *AuthController) Session(c *gin.Context) {
	p := session.MustGet(c)

	if c.Query("wait") == "" {
		c.JSON(http.StatusOK, asSessionResponse(p.Current()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), resolveTimeout)
	defer cancel()

	// A timeout is not an error here: the response just says resolving.
	snap, _ := p.WaitResolved(ctx)
	c.JSON(http.StatusOK, asSessionResponse(snap))
}

func (ac *AuthController) SignIn(c *gin.Context) {
	p := session.MustGet(c)

	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	err := p.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		ac.logAttempt(c, "sign_in", "", err)
		respondServiceError(c, ac.logger, err, "sign in")
		return
	}

	snap := settle(c.Request.Context(), p, func(s session.Snapshot) bool {
		return s.Identity != nil && strings.EqualFold(s.Identity.Email, strings.TrimSpace(req.Email))
	})
	ac.logAttempt(c, "sign_in", uidOf(snap), nil)
	c.JSON(http.StatusOK, asSessionResponse(snap))
}

func (ac *AuthController) SignUp(c *gin.Context) {
	p := session.MustGet(c)

	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	err := p.SignUp(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		// A profile write failure still leaves the new identity signed in.
		ac.logAttempt(c, "sign_up", uidOf(p.Current()), err)
		respondServiceError(c, ac.logger, err, "sign up")
		return
	}

	snap := settle(c.Request.Context(), p, func(s session.Snapshot) bool {
		return s.Identity != nil && s.Identity.DisplayName == req.Name &&
			strings.EqualFold(s.Identity.Email, strings.TrimSpace(req.Email))
	})
	ac.logAttempt(c, "sign_up", uidOf(snap), nil)
	c.JSON(http.StatusCreated, asSessionResponse(snap))
}

func (ac *AuthController) Logout(c *gin.Context) {
	p := session.MustGet(c)
	uid := uidOf(p.Current())

	if err := p.Logout(c.Request.Context()); err != nil {
		ac.logAttempt(c, "logout", uid, err)
		respondServiceError(c, ac.logger, err, "logout")
		return
	}

	settle(c.Request.Context(), p, func(s session.Snapshot) bool {
		return !s.SignedIn()
	})
	ac.logAttempt(c, "logout", uid, nil)
	c.Status(http.StatusNoContent)
}

// CSRFToken hands out the token non-GET requests must echo.
func (ac *AuthController) CSRFToken(c *gin.Context) {
	token := web.GetCSRFToken(c)
	if token != "" {
		c.Header(web.CSRFTokenHeader, token)
	}
	c.JSON(http.StatusOK, CSRFResponse{Token: token, Header: web.CSRFTokenHeader})
}

func (ac *AuthController) logAttempt(c *gin.Context, action, uid string, err error) {
	if ac.audit == nil {
		return
	}
	ac.audit.LogAuth(audit.AuthAttempt{
		UID:       uid,
		ClientID:  c.GetString(contextKeyClientID),
		Action:    action,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		ErrorCode: string(identity.CodeOf(err)),
		Err:       err,
	})
}

// settle waits until the session satisfies done, the settle timeout
// passes, or the request is cancelled, and returns the last state seen.
func settle(ctx context.Context, p *session.Provider, done func(session.Snapshot) bool) session.Snapshot {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()

	updates, stop := p.Watch()
	defer stop()

	last := p.Current()
	for {
		select {
		case s, ok := <-updates:
			if !ok {
				return last
			}
			last = s
			if done(s) {
				return s
			}
		case <-ctx.Done():
			return last
		}
	}
}

func uidOf(s session.Snapshot) string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.UID
}
