package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/supportbot/internal/apperr"
	"github.com/psds-microservice/supportbot/internal/auth"
	"github.com/psds-microservice/supportbot/internal/logger"
)

type AuthHandler struct {
	auth   *auth.Authenticator
	secure bool
	log    *logger.Logger
}

// NewAuthHandler; secure marks the session cookie HTTPS-only.
func NewAuthHandler(a *auth.Authenticator, secure bool, log *logger.Logger) *AuthHandler {
	return &AuthHandler{auth: a, secure: secure, log: log}
}

func (h *AuthHandler) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{
		"Title": "Вход",
		"Next":  safeNext(c.Query("next")),
	})
}

// LoginForm handles the HTML login form.
func (h *AuthHandler) LoginForm(c *gin.Context) {
	next := safeNext(c.PostForm("next"))
	tok, exp, err := h.auth.Login(c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		logger.FromGin(c, h.log).Warn("staff login failed", "username", c.PostForm("username"), "ip", c.ClientIP())
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{
			"Title": "Вход",
			"Next":  next,
			"Error": "Неверные учетные данные",
		})
		return
	}
	auth.SetCookie(c, tok, exp, h.secure)
	c.Redirect(http.StatusSeeOther, next)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login is the JSON variant of LoginForm.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, apperr.BadRequest("INVALID_BODY", "username and password are required"))
		return
	}
	tok, exp, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logger.FromGin(c, h.log).Warn("staff login failed", "username", req.Username, "ip", c.ClientIP())
			apperr.Abort(c, apperr.Unauthorized(err.Error()))
			return
		}
		apperr.Abort(c, err)
		return
	}
	auth.SetCookie(c, tok, exp, h.secure)
	c.JSON(http.StatusOK, gin.H{"username": req.Username, "expires_at": exp})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	auth.ClearCookie(c)
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.Status(http.StatusNoContent)
		return
	}
	c.Redirect(http.StatusSeeOther, "/login")
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/dashboard"
	}
	return next
}
