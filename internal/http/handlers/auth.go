package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cognivue/cognivue-backend/internal/http/middleware"
	"github.com/cognivue/cognivue-backend/internal/http/response"
	"github.com/cognivue/cognivue-backend/internal/platform/apierr"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
	"github.com/cognivue/cognivue-backend/internal/services"
)

type CookieConfig struct {
	Domain string
	Secure bool
}

type AuthHandler struct {
	log         *logger.Logger
	authService services.AuthService
	frontendURL string
	cookie      CookieConfig
}

func NewAuthHandler(log *logger.Logger, authService services.AuthService, frontendURL string, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{
		log:         log.With("handler", "AuthHandler"),
		authService: authService,
		frontendURL: frontendURL,
		cookie:      cookie,
	}
}

// GET /auth/google/
func (ah *AuthHandler) GoogleLogin(c *gin.Context) {
	redirect, err := ah.authService.BeginGoogleLogin(c.Request.Context())
	if err != nil {
		ah.log.Error("Error initiating Google OAuth", "error", err)
		response.RespondAPIError(c, err, "Error initializing Google login")
		return
	}
	c.Redirect(http.StatusFound, redirect)
}

// GET /auth/google/callback/
func (ah *AuthHandler) GoogleCallback(c *gin.Context) {
	if c.Query("code") == "" {
		reason := c.Query("error")
		if reason == "" {
			reason = "Unknown error"
		}
		response.RespondAPIError(c, apierr.Validation("OAuth authentication failed: "+reason), "")
		return
	}
	res, err := ah.authService.CompleteGoogleLogin(c.Request.Context(), c.Query("state"), c.Query("code"), c.Request.UserAgent())
	if err != nil {
		response.RespondAPIError(c, err, "OAuth authentication failed")
		return
	}
	ah.setSessionCookie(c, res.Token, time.Until(res.ExpiresAt))
	c.Redirect(http.StatusFound, ah.frontendURL)
}

// GET /auth/logout/ redirects to the frontend; POST variants answer JSON.
func (ah *AuthHandler) Logout(c *gin.Context) {
	if err := ah.authService.Logout(c.Request.Context()); err != nil {
		ah.log.Warn("Logout failed", "error", err)
	}
	ah.setSessionCookie(c, "", -1)
	if c.Request.Method == http.MethodGet {
		c.Redirect(http.StatusFound, ah.frontendURL)
		return
	}
	response.RespondOK(c, gin.H{"message": "Logged out successfully"})
}

func (ah *AuthHandler) setSessionCookie(c *gin.Context, value string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	if ttl < 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, value, maxAge, "/", ah.cookie.Domain, ah.cookie.Secure, true)
}
