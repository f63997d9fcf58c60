package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/healthbook/internal/audit"
	"github.com/mrlokans/healthbook/internal/clients"
	"github.com/mrlokans/healthbook/internal/config"
	"github.com/mrlokans/healthbook/internal/database"
	auditrepo "github.com/mrlokans/healthbook/internal/database/audit"
	"github.com/mrlokans/healthbook/internal/docstore/memstore"
	"github.com/mrlokans/healthbook/internal/entities"
	"github.com/mrlokans/healthbook/internal/identity"
	"github.com/mrlokans/healthbook/internal/identity/local"
	"github.com/mrlokans/healthbook/internal/session"
	"github.com/mrlokans/healthbook/internal/web"
)

type testEnv struct {
	router   *gin.Engine
	store    *memstore.Store
	registry *clients.Registry
	audit    *audit.Service
}

func setupRouter(t *testing.T, csrfSecret []byte) *testEnv {
	t.Helper()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "router.db"), database.WithLogLevel(logger.Silent))
	require.NoError(t, err)

	backend := local.NewBackend(db.DB, config.Auth{
		BcryptCost:        bcrypt.MinCost,
		MinPasswordLength: 6,
		MaxLoginAttempts:  2,
		RateLimitWindow:   15 * time.Minute,
		LockoutDuration:   30 * time.Minute,
	})

	store := memstore.New()
	registry := clients.New(clients.BackendOpener(backend), store)
	auditService := audit.NewService(auditrepo.NewRepository(db.DB), nil)

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sessions, err := web.NewSessionManager(sqlDB, config.Web{SessionLifetime: time.Hour})
	require.NoError(t, err)

	t.Cleanup(func() {
		registry.Close()
		backend.Close()
		auditService.Wait()
		db.Close()
	})

	router := NewRouter(RouterConfig{
		Registry:   registry,
		Sessions:   sessions,
		Audit:      auditService,
		Checks:     map[string]Pinger{"database": db},
		CSRFSecret: csrfSecret,
		Version:    "test",
	})

	return &testEnv{router: router, store: store, registry: registry, audit: auditService}
}

// browser keeps cookies between requests like a single user agent would.
type browser struct {
	t       *testing.T
	router  *gin.Engine
	cookies map[string]*http.Cookie
	headers map[string]string
}

func (e *testEnv) newBrowser(t *testing.T) *browser {
	return &browser{t: t, router: e.router, cookies: map[string]*http.Cookie{}, headers: map[string]string{}}
}

func (b *browser) do(method, path string, body any) *httptest.ResponseRecorder {
	b.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(b.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	b.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		b.cookies[c.Name] = c
	}
	return w
}

func (b *browser) session(wait bool) SessionResponse {
	b.t.Helper()
	path := "/api/session"
	if wait {
		path += "?wait=1"
	}
	w := b.do(http.MethodGet, path, nil)
	require.Equal(b.t, http.StatusOK, w.Code)
	return decode[SessionResponse](b.t, w)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRouter_Health(t *testing.T) {
	env := setupRouter(t, nil)
	b := env.newBrowser(t)

	w := b.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	health := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "ok", health.Checks["database"])
	assert.Equal(t, "test", health.Version)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestRouter_NewBrowserStartsSignedOut(t *testing.T) {
	env := setupRouter(t, nil)
	b := env.newBrowser(t)

	s := b.session(true)

	assert.False(t, s.Resolving)
	assert.False(t, s.SignedIn)
	assert.Nil(t, s.User)
	assert.Contains(t, b.cookies, "session")
	assert.Equal(t, 1, env.registry.Len())
}

func TestRouter_SignUpSignOutSignIn(t *testing.T) {
	env := setupRouter(t, nil)
	b := env.newBrowser(t)
	b.session(true)

	w := b.do(http.MethodPost, "/api/auth/signup", SignUpRequest{
		Email:    "Ann@Example.com",
		Password: "secret1",
		Name:     "Ann",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode[SessionResponse](t, w)
	require.True(t, created.SignedIn)
	require.NotNil(t, created.User)
	assert.Equal(t, "ann@example.com", created.User.Email)
	assert.Equal(t, "Ann", created.User.DisplayName)

	var record entities.UserProfileRecord
	found, err := env.store.Read(session.UsersCollection, created.User.UID, &record)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Ann", record.Name)
	assert.Equal(t, "Ann@Example.com", record.Email)
	assert.Empty(t, record.HealthProfile.Allergies)

	// Same browser, later request
	s := b.session(false)
	assert.True(t, s.SignedIn)
	assert.Equal(t, created.User.UID, s.User.UID)

	// A different browser is not signed in
	other := env.newBrowser(t)
	assert.False(t, other.session(true).SignedIn)

	w = b.do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, b.session(false).SignedIn)

	w = b.do(http.MethodPost, "/api/auth/signin", SignInRequest{Email: "ann@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	signedIn := decode[SessionResponse](t, w)
	require.True(t, signedIn.SignedIn)
	assert.Equal(t, created.User.UID, signedIn.User.UID)
}

func TestRouter_SignUpErrors(t *testing.T) {
	env := setupRouter(t, nil)
	b := env.newBrowser(t)

	w := b.do(http.MethodPost, "/api/auth/signup", SignUpRequest{Email: "ann@example.com", Password: "123", Name: "Ann"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(identity.CodeWeakPassword), decode[ErrorResponse](t, w).Code)

	w = b.do(http.MethodPost, "/api/auth/signup", SignUpRequest{Email: "not-an-email", Password: "secret1", Name: "Ann"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(identity.CodeInvalidEmail), decode[ErrorResponse](t, w).Code)

	w = b.do(http.MethodPost, "/api/auth/signup", SignUpRequest{Email: "ann@example.com", Password: "secret1", Name: "Ann"})
	require.Equal(t, http.StatusCreated, w.Code)

	other := env.newBrowser(t)
	w = other.do(http.MethodPost, "/api/auth/signup", SignUpRequest{Email: "ann@example.com", Password: "secret2", Name: "Imposter"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(identity.CodeEmailAlreadyInUse), decode[ErrorResponse](t, w).Code)
	assert.False(t, other.session(false).SignedIn)

	assert.Equal(t, 1, env.store.Len(session.UsersCollection))
}

func TestRouter_SignInFailures(t *testing.T) {
	env := setupRouter(t, nil)
	b := env.newBrowser(t)

	w := b.do(http.MethodPost, "/api/auth/signup", SignUpRequest{Email: "ann@example.com", Password: "secret1", Name: "Ann"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, http.StatusNoContent, b.do(http.MethodPost, "/api/auth/logout", nil).Code)

	for i := 0; i < 2; i++ {
		w = b.do(http.MethodPost, "/api/auth/signin", SignInRequest{Email: "ann@example.com", Password: "wrong-password"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, string(identity.CodeInvalidCredential), decode[ErrorResponse](t, w).Code)
	}

	// Locked out, even with the right password
	w = b.do(http.MethodPost, "/api/auth/signin", SignInRequest{Email: "ann@example.com", Password: "secret1"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.False(t, b.session(false).SignedIn)
}

func TestRouter_MalformedBody(t *testing.T) {
	env := setupRouter(t, nil)
	b := env.newBrowser(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	b.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_LogoutWhileSignedOut(t *testing.T) {
	env := setupRouter(t, nil)
	b := env.newBrowser(t)

	w := b.do(http.MethodPost, "/api/auth/logout", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, b.session(false).SignedIn)
}

func TestRouter_AuditsAuthAttempts(t *testing.T) {
	env := setupRouter(t, nil)
	b := env.newBrowser(t)

	w := b.do(http.MethodPost, "/api/auth/signup", SignUpRequest{Email: "ann@example.com", Password: "secret1", Name: "Ann"})
	require.Equal(t, http.StatusCreated, w.Code)
	uid := decode[SessionResponse](t, w).User.UID

	w = b.do(http.MethodPost, "/api/auth/signin", SignInRequest{Email: "ann@example.com", Password: "nope-nope"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	env.audit.Wait()

	events, total, err := env.audit.GetEvents(context.Background(), auditrepo.Filter{EventType: entities.AuditEventAuth}, 10, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)

	byAction := map[string]entities.AuditEvent{}
	for _, ev := range events {
		byAction[ev.Action] = ev
	}

	signUp := byAction["sign_up"]
	assert.Equal(t, entities.AuditStatusSuccess, signUp.Status)
	assert.Equal(t, uid, signUp.UID)
	assert.NotEmpty(t, signUp.ClientID)

	signIn := byAction["sign_in"]
	assert.Equal(t, entities.AuditStatusFailed, signIn.Status)
	assert.Equal(t, string(identity.CodeInvalidCredential), signIn.ErrorCode)
	assert.Equal(t, signUp.ClientID, signIn.ClientID)
}

func TestRouter_CSRF(t *testing.T) {
	env := setupRouter(t, []byte("0123456789abcdef0123456789abcdef"))
	b := env.newBrowser(t)

	w := b.do(http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "csrf/invalid-token")

	w = b.do(http.MethodGet, "/api/csrf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	token := decode[CSRFResponse](t, w)
	require.NotEmpty(t, token.Token)
	assert.Equal(t, web.CSRFTokenHeader, token.Header)
	assert.Equal(t, token.Token, w.Header().Get(web.CSRFTokenHeader))

	b.headers[web.CSRFTokenHeader] = token.Token
	w = b.do(http.MethodPost, "/api/auth/signup", SignUpRequest{Email: "ann@example.com", Password: "secret1", Name: "Ann"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestRouter_ClosedRegistry(t *testing.T) {
	env := setupRouter(t, nil)
	env.registry.Close()

	w := env.newBrowser(t).do(http.MethodGet, "/api/session", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
