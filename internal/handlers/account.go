package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterForm handles GET /register
func (h *Handler) RegisterForm(c *gin.Context) {
	h.render(c, http.StatusOK, "register.html", "Register", nil)
}

// Register handles POST /register
func (h *Handler) Register(c *gin.Context) {
	if err := h.sessions.Clear(c); err != nil {
		h.fail(c, "Register", err)
		return
	}

	_, err := h.auth.Register(c.Request.Context(),
		c.PostForm("username"),
		c.PostForm("password"),
		c.PostForm("confirmation"),
	)
	if err != nil {
		h.fail(c, "Register", err)
		return
	}

	h.done(c, "Register", "Registered! Please log in.", "/login")
}

// LoginForm handles GET /login
func (h *Handler) LoginForm(c *gin.Context) {
	h.render(c, http.StatusOK, "login.html", "Log In", nil)
}

// Login handles POST /login. Any previous session is dropped first, so a
// failed attempt also logs the caller out.
func (h *Handler) Login(c *gin.Context) {
	if err := h.sessions.Clear(c); err != nil {
		h.fail(c, "Login", err)
		return
	}

	user, err := h.auth.Login(c.Request.Context(), c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		h.fail(c, "Login", err)
		return
	}

	if err := h.sessions.SetUser(c, user.ID); err != nil {
		h.fail(c, "Login", err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// Logout handles GET /logout
func (h *Handler) Logout(c *gin.Context) {
	if err := h.sessions.Clear(c); err != nil {
		h.fail(c, "Logout", err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}
