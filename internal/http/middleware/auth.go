package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cognivue/cognivue-backend/internal/http/response"
	"github.com/cognivue/cognivue-backend/internal/platform/apierr"
	"github.com/cognivue/cognivue-backend/internal/platform/ctxutil"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
	"github.com/cognivue/cognivue-backend/internal/services"
)

// SessionCookie carries the session JWT for browser clients.
const SessionCookie = "cognivue_session"

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), authService: authService}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ExtractToken(c)
		if tokenString == "" {
			response.AbortAPIError(c, apierr.Unauthenticated("Authentication required"))
			return
		}
		ctx, err := am.authService.SetContextFromToken(c.Request.Context(), tokenString)
		if err != nil {
			if !apierr.Is(err, apierr.CodeUnauthenticated) {
				am.log.Warn("Token check failed", "error", err)
			}
			response.AbortAPIError(c, apierr.Unauthenticated("Authentication required"))
			return
		}
		if ctxutil.UserID(ctx) == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorBody{
				Error: "Authentication required", Code: apierr.CodeUnauthenticated,
			})
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token is present and never
// rejects the request.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := ExtractToken(c); tokenString != "" {
			if ctx, err := am.authService.SetContextFromToken(c.Request.Context(), tokenString); err == nil {
				c.Request = c.Request.WithContext(ctx)
			}
		}
		c.Next()
	}
}

// ExtractToken prefers the Authorization header over the session cookie.
func ExtractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}
