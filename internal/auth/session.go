// Package auth manages the admin session cookie shared by the audit actions and
// the write side of the API.
package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/pricing-admin/internal/config"
	"github.com/smartdevs17/pricing-admin/pkg/utils"
)

const (
	sessionEmailKey    = "email"
	sessionLoggedInKey = "logged_in_at"
)

// Identity is the administrator bound to a request's session cookie
type Identity struct {
	Email      string    `json:"email"`
	LoggedInAt time.Time `json:"loggedInAt"`
}

// SessionManager issues and reads admin session cookies
type SessionManager struct {
	store      *sessions.CookieStore
	name       string
	adminToken string
	logger     *logrus.Entry
}

// NewSessionManager creates a session manager from auth configuration. Without a
// configured secret a random one is generated, so sessions do not survive restarts.
func NewSessionManager(cfg config.AuthConfig) (*SessionManager, error) {
	logger := utils.ComponentLogger("auth")

	secret := cfg.SessionSecret
	if secret == "" {
		generated, err := utils.GenerateSecret(32)
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeInternal, "Failed to generate session secret", err.Error())
		}
		secret = generated
		logger.Warn("No session secret configured, generated an ephemeral one")
	}

	sameSite, err := cfg.SameSiteMode()
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Invalid cookie configuration", err.Error())
	}

	name := cfg.SessionName
	if name == "" {
		name = "admin-session"
	}

	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: sameSite,
	}

	return &SessionManager{
		store:      store,
		name:       name,
		adminToken: cfg.AdminToken,
		logger:     logger,
	}, nil
}

// Login exchanges the admin token for a session cookie written to w
func (m *SessionManager) Login(w http.ResponseWriter, r *http.Request, email, token string) (*Identity, error) {
	if m.adminToken == "" {
		return nil, utils.NewAppError(utils.ErrCodeUnauthorized, "Admin login is disabled")
	}

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Email is required")
	}

	if !utils.SecureCompare(token, m.adminToken) {
		m.logger.WithField("email", email).Warn("Rejected admin login")
		return nil, utils.NewAppError(utils.ErrCodeUnauthorized, "Invalid credentials")
	}

	// A stale or tampered cookie still yields a fresh session.
	session, _ := m.store.Get(r, m.name)

	now := time.Now().UTC()
	session.Values[sessionEmailKey] = email
	session.Values[sessionLoggedInKey] = now.Unix()

	if err := session.Save(r, w); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeInternal, "Failed to save session", err.Error())
	}

	return &Identity{Email: email, LoggedInAt: time.Unix(now.Unix(), 0).UTC()}, nil
}

// Logout expires the session cookie
func (m *SessionManager) Logout(w http.ResponseWriter, r *http.Request) error {
	session, _ := m.store.Get(r, m.name)
	session.Options.MaxAge = -1
	session.Values = make(map[interface{}]interface{})

	if err := session.Save(r, w); err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "Failed to clear session", err.Error())
	}
	return nil
}

// Identity resolves the administrator from the request cookies
func (m *SessionManager) Identity(r *http.Request) (*Identity, error) {
	session, err := m.store.Get(r, m.name)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeUnauthorized, "Invalid session", err.Error())
	}

	email, ok := session.Values[sessionEmailKey].(string)
	if !ok || email == "" {
		return nil, utils.NewAppError(utils.ErrCodeUnauthorized, "No active session")
	}

	identity := &Identity{Email: email}
	if loggedIn, ok := session.Values[sessionLoggedInKey].(int64); ok {
		identity.LoggedInAt = time.Unix(loggedIn, 0).UTC()
	}

	return identity, nil
}
