package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"zkv-router/internal/handlers"
)

// ContextSubjectKey holds the authenticated token subject.
const ContextSubjectKey = "subject"

// AuthMiddleware JWT bearer authentication
type AuthMiddleware struct {
	secret []byte
	logger *logrus.Logger
}

// NewAuthMiddleware create JWT middleware
func NewAuthMiddleware(secret string, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secret: []byte(secret),
		logger: logger,
	}
}

func (a *AuthMiddleware) reject(c *gin.Context, msg, code string) {
	a.logger.WithFields(logrus.Fields{
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
		"code":   code,
	}).Warn("JWT authentication failed")

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// RequireAuth JWT. Browsers cannot set headers on websocket upgrades, so a
// token query parameter is accepted as well.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(a.secret) == 0 {
			a.reject(c, "API authentication is not configured", "AUTH_NOT_CONFIGURED")
			return
		}

		var tokenString string
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") {
				a.reject(c, "Authorization header must be in format: Bearer <token>", "INVALID_AUTH_FORMAT")
				return
			}
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		} else {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			a.reject(c, "Authentication required", "MISSING_AUTH_HEADER")
			return
		}

		claims, err := handlers.ValidateJWTToken(a.secret, tokenString)
		if err != nil {
			a.reject(c, "Invalid or expired token", "INVALID_TOKEN")
			return
		}

		c.Set(ContextSubjectKey, claims.Subject)
		a.logger.WithFields(logrus.Fields{
			"path":    c.Request.URL.Path,
			"method":  c.Request.Method,
			"subject": claims.Subject,
		}).Debug("JWT authenticated")

		c.Next()
	}
}
