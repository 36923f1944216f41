// Package session owns the login/logout lifecycle. It composes the
// credential store with the authenticated transport and is the only writer
// of session state.
package session

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/tresse/storefront/internal/credstore"
	"github.com/tresse/storefront/internal/models"
)

// ErrInvalidLogin is returned when a login payload fails validation. The
// manager resets to logged-out rather than keeping a half-valid session.
var ErrInvalidLogin = errors.New("invalid login payload")

// Manager holds the in-memory session and persists it through the
// credential store.
type Manager struct {
	creds *credstore.Store
	log   *zap.Logger

	mu          sync.Mutex
	user        *models.UserIdentity
	invalidated chan struct{}
	invClosed   bool
}

// NewManager creates a logged-out Manager. Call RestoreFromStorage once at
// startup to pick up a persisted session.
func NewManager(creds *credstore.Store, log *zap.Logger) *Manager {
	return &Manager{
		creds:       creds,
		log:         log,
		invalidated: make(chan struct{}),
	}
}

// Login validates and establishes a session. The user must satisfy the
// identity constraints and accessToken must be non-empty; on any validation
// failure the manager performs a hard reset (fail closed) and returns
// ErrInvalidLogin. refreshToken may be empty.
func (m *Manager) Login(accessToken, refreshToken string, user models.UserIdentity) error {
	if accessToken == "" {
		m.Logout()
		return ErrInvalidLogin
	}
	if err := user.Validate(); err != nil {
		m.log.Warn("rejecting login with invalid user payload", zap.Error(err))
		m.Logout()
		return ErrInvalidLogin
	}

	m.creds.Set(credstore.AccessToken, accessToken)
	if refreshToken != "" {
		m.creds.Set(credstore.RefreshToken, refreshToken)
	}
	if raw, err := json.Marshal(user); err == nil {
		m.creds.Set(credstore.User, string(raw))
	}

	m.mu.Lock()
	m.user = &user
	// Re-arm the one-shot invalidation signal for the new session.
	if m.invClosed {
		m.invalidated = make(chan struct{})
		m.invClosed = false
	}
	m.mu.Unlock()

	m.log.Info("session established", zap.Int64("user_id", user.ID))
	return nil
}

// Logout clears all credentials and the in-memory session. Idempotent.
func (m *Manager) Logout() {
	m.creds.ClearAll()
	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()
}

// RestoreFromStorage loads a persisted session. If the access token or the
// user is missing or invalid, the session is force-logged-out rather than
// left partially populated.
func (m *Manager) RestoreFromStorage() {
	access := m.creds.Get(credstore.AccessToken)
	rawUser := m.creds.Get(credstore.User)
	if access == "" || rawUser == "" {
		m.Logout()
		return
	}
	user, err := models.ParseUser([]byte(rawUser))
	if err != nil {
		m.log.Warn("persisted user failed validation, logging out", zap.Error(err))
		m.Logout()
		return
	}
	m.mu.Lock()
	m.user = &user
	m.mu.Unlock()
}

// IsLoggedIn reports whether a session is established.
func (m *Manager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil
}

// CurrentUser returns the session user, if any.
func (m *Manager) CurrentUser() (models.UserIdentity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return models.UserIdentity{}, false
	}
	return *m.user, true
}

// Invalidated returns a channel closed at most once per session when the
// transport gives up on refreshing credentials.
func (m *Manager) Invalidated() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidated
}

// Invalidate clears the in-memory session and fires the one-shot signal.
// Wired as the transport's invalidation handler; safe to call repeatedly.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.user = nil
	if !m.invClosed {
		close(m.invalidated)
		m.invClosed = true
	}
	m.mu.Unlock()
}

// TokenExpiry reports the exp claim of the stored access token. The token
// is decoded without signature verification; the client only displays this,
// the server remains the authority. Returns false when no expiry is known.
func (m *Manager) TokenExpiry() (time.Time, bool) {
	access := m.creds.Get(credstore.AccessToken)
	if access == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
