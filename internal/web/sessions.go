package web

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"

	"github.com/mrlokans/healthbook/internal/config"
)

// SessionKeyClientID is the browser session key holding the client id.
const SessionKeyClientID = "client_id"

// SessionManager wraps scs.SessionManager with application-specific methods.
type SessionManager struct {
	*scs.SessionManager
}

// NewSessionManager creates a session manager persisting browser sessions
// in the sessions table of sqlDB.
func NewSessionManager(sqlDB *sql.DB, cfg config.Web) (*SessionManager, error) {
	_, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	sm := scs.New()
	sm.Store = sqlite3store.New(sqlDB)

	sm.Lifetime = cfg.SessionLifetime
	sm.IdleTimeout = cfg.SessionLifetime / 2 // Half of lifetime for inactivity

	sm.Cookie.Name = "session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.SecureCookies
	sm.Cookie.SameSite = http.SameSiteStrictMode
	sm.Cookie.Path = "/"

	return &SessionManager{SessionManager: sm}, nil
}

// ClientID returns the client id bound to the browser session, or "".
func (sm *SessionManager) ClientID(r *http.Request) string {
	return sm.GetString(r.Context(), SessionKeyClientID)
}

// EnsureClientID returns the session's client id, assigning a new one
// to sessions that have none. created reports whether it was assigned now.
func (sm *SessionManager) EnsureClientID(r *http.Request) (id string, created bool, err error) {
	if id = sm.ClientID(r); id != "" {
		return id, false, nil
	}

	// Renew token to prevent session fixation
	if err := sm.RenewToken(r.Context()); err != nil {
		return "", false, err
	}

	id = uuid.NewString()
	sm.Put(r.Context(), SessionKeyClientID, id)
	return id, true, nil
}

// GenerateSessionSecret returns 32 random bytes, hex encoded.
func GenerateSessionSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// DecodeSessionSecret turns a configured secret into key material. Hex
// strings are decoded, anything else is used verbatim.
func DecodeSessionSecret(secret string) []byte {
	if b, err := hex.DecodeString(secret); err == nil && len(b) > 0 {
		return b
	}
	return []byte(secret)
}
