// Package handlers serves the HTML pages and form posts of the trading site.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/atharvakonge/papertrade/internal/auth"
	"github.com/atharvakonge/papertrade/internal/models"
	"github.com/atharvakonge/papertrade/internal/session"
	"github.com/atharvakonge/papertrade/internal/trading"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const defaultStreamInterval = 15 * time.Second

// Pinger reports whether the database is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the services every route needs
type Handler struct {
	trading        *trading.Service
	auth           *auth.Service
	sessions       *session.Manager
	db             Pinger
	streamInterval time.Duration
	logger         *logrus.Entry
}

func New(tradingSvc *trading.Service, authSvc *auth.Service, sessions *session.Manager, db Pinger, streamInterval time.Duration, logger *logrus.Entry) *Handler {
	if streamInterval <= 0 {
		streamInterval = defaultStreamInterval
	}
	return &Handler{
		trading:        tradingSvc,
		auth:           authSvc,
		sessions:       sessions,
		db:             db,
		streamInterval: streamInterval,
		logger:         logger,
	}
}

// Routes registers every endpoint on r. Global middleware such as logging and
// recovery is expected to be installed by the caller first.
func (h *Handler) Routes(r *gin.Engine) {
	r.Use(NoCache(), h.sessions.Load())

	r.GET("/health", h.Health)

	r.GET("/register", h.RegisterForm)
	r.POST("/register", h.Register)
	r.GET("/login", h.LoginForm)
	r.POST("/login", h.Login)
	r.GET("/logout", h.Logout)

	authed := r.Group("/", h.sessions.RequireUser())
	authed.GET("/", h.Index)
	authed.GET("/buy", h.BuyForm)
	authed.POST("/buy", h.Buy)
	authed.GET("/sell", h.SellForm)
	authed.POST("/sell", h.Sell)
	authed.GET("/quote", h.QuoteForm)
	authed.POST("/quote", h.Quote)
	authed.GET("/history", h.History)
	authed.GET("/add", h.AddForm)
	authed.POST("/add", h.Add)
	authed.GET("/ws/quotes", h.QuoteStream)
}

// NoCache stops browsers from caching any response
func NoCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Expires", "0")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}

// render fills in the layout fields and writes page
func (h *Handler) render(c *gin.Context, code int, page, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	_, loggedIn := h.sessions.UserID(c)
	data["Title"] = title
	data["LoggedIn"] = loggedIn
	data["Flashes"] = h.sessions.Flashes(c)
	c.HTML(code, page, data)
}

func (h *Handler) apology(c *gin.Context, code int, message string) {
	h.render(c, code, "apology.html", "Apology", gin.H{
		"Code":    code,
		"Message": message,
	})
}

// fail answers err: user errors with 400 and their message, a vanished
// account with a fresh login, anything else with a logged 500.
func (h *Handler) fail(c *gin.Context, method string, err error) {
	if models.IsUserError(err) {
		h.apology(c, http.StatusBadRequest, err.Error())
		return
	}

	l := h.logger.WithFields(logrus.Fields{
		"method":  method,
		"user_id": session.CurrentUser(c),
	})

	if trading.IsNotFound(err) {
		l.Warn("session refers to a missing user")
		if err := h.sessions.Clear(c); err != nil {
			l.WithError(err).Error("clearing session failed")
		}
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	l.WithError(err).Error("request failed")
	c.Error(err)
	h.apology(c, http.StatusInternalServerError, "internal server error")
}

// done queues msg for the next page and redirects there
func (h *Handler) done(c *gin.Context, method, msg, location string) {
	if err := h.sessions.AddFlash(c, msg); err != nil {
		h.logger.WithFields(logrus.Fields{
			"method": method,
		}).WithError(err).Warn("flash not stored")
	}
	c.Redirect(http.StatusSeeOther, location)
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.WithError(err).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
