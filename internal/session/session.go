// Package session keeps per-browser state (logged-in user, flash messages)
// on the server, keyed by a random id stored in an HttpOnly cookie.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/atharvakonge/papertrade/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	contextKey = "session"
	// UserIDKey is set on the gin context by RequireUser
	UserIDKey = "user_id"
)

// Session is the state attached to one request
type Session struct {
	ID string
	Data
}

// Manager reads and writes sessions through a Store
type Manager struct {
	store  Store
	cookie string
	ttl    time.Duration
	secure bool
	logger *logrus.Entry
}

func NewManager(store Store, cfg config.SessionConfig, logger *logrus.Entry) *Manager {
	name := cfg.CookieName
	if name == "" {
		name = "session"
	}
	return &Manager{
		store:  store,
		cookie: name,
		ttl:    cfg.TTL,
		secure: cfg.Secure,
		logger: logger,
	}
}

func newID() string {
	return uuid.NewString()
}

// Load attaches the caller's session to the context. A missing, unknown or
// expired id yields a fresh, empty session which is only stored once written.
func (m *Manager) Load() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := &Session{ID: newID()}

		if id, err := c.Cookie(m.cookie); err == nil && id != "" {
			data, err := m.store.Load(c.Request.Context(), id)
			switch {
			case err == nil:
				sess = &Session{ID: id, Data: data}
			case errors.Is(err, ErrNotFound):
			default:
				m.logger.WithError(err).Warn("session load failed")
			}
		}

		c.Set(contextKey, sess)
		c.Next()
	}
}

// Get returns the request's session; Load must run first
func (m *Manager) Get(c *gin.Context) *Session {
	if v, ok := c.Get(contextKey); ok {
		if sess, ok := v.(*Session); ok {
			return sess
		}
	}
	sess := &Session{ID: newID()}
	c.Set(contextKey, sess)
	return sess
}

// UserID returns the logged-in user, if any
func (m *Manager) UserID(c *gin.Context) (int64, bool) {
	sess := m.Get(c)
	return sess.UserID, sess.UserID != 0
}

func (m *Manager) save(c *gin.Context, sess *Session) error {
	if err := m.store.Save(c.Request.Context(), sess.ID, sess.Data, m.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	m.setCookie(c, sess.ID)
	return nil
}

// setCookie writes a browser-session cookie (no Max-Age)
func (m *Manager) setCookie(c *gin.Context, id string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.cookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetUser logs userID in under a new session id. Pending flashes survive.
func (m *Manager) SetUser(c *gin.Context, userID int64) error {
	old := m.Get(c)
	if err := m.store.Delete(c.Request.Context(), old.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	sess := &Session{ID: newID(), Data: Data{UserID: userID, Flashes: old.Flashes}}
	c.Set(contextKey, sess)
	return m.save(c, sess)
}

// Clear forgets everything about the caller and hands out a new id
func (m *Manager) Clear(c *gin.Context) error {
	old := m.Get(c)
	if err := m.store.Delete(c.Request.Context(), old.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	sess := &Session{ID: newID()}
	c.Set(contextKey, sess)
	m.setCookie(c, sess.ID)
	return nil
}

// AddFlash queues a message for the next rendered page
func (m *Manager) AddFlash(c *gin.Context, msg string) error {
	sess := m.Get(c)
	sess.Flashes = append(sess.Flashes, msg)
	return m.save(c, sess)
}

// Flashes returns and removes the queued messages
func (m *Manager) Flashes(c *gin.Context) []string {
	sess := m.Get(c)
	if len(sess.Flashes) == 0 {
		return nil
	}
	flashes := sess.Flashes
	sess.Flashes = nil
	if err := m.save(c, sess); err != nil {
		m.logger.WithError(err).Warn("flash consume failed")
	}
	return flashes
}

// RequireUser redirects anonymous callers to the login page
func (m *Manager) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := m.UserID(c)
		if !ok {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// CurrentUser returns the id RequireUser put on the context
func CurrentUser(c *gin.Context) int64 {
	return c.GetInt64(UserIDKey)
}
