package middleware

import (
	"net/http"
	"strings"

	"restaurant_pos/internal/models"
	"restaurant_pos/pkg/utils"

	"github.com/gin-gonic/gin"
)

const (
	sessionKey     = "session"
	terminalHeader = "X-Terminal-ID"
)

// AuthMiddleware creates a Gin middleware for JWT authentication. It builds the
// terminal session downstream handlers work with.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Authorization header required", "Use Bearer <token>"))
			return
		}

		claims, err := utils.ValidateToken(tokenString)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid or expired token", err.Error()))
			return
		}

		terminal := claims.TerminalID
		if h := strings.TrimSpace(c.GetHeader(terminalHeader)); h != "" {
			terminal = h
		}
		if terminal == "" {
			terminal = "default"
		}

		session := &models.Session{
			UserID:     claims.UserID,
			Username:   claims.Username,
			Role:       claims.Role,
			TerminalID: terminal,
		}
		c.Set(sessionKey, session)
		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("userRole", claims.Role)

		c.Next()
	}
}

// bearerToken reads the Authorization header. Browsers cannot set headers on a
// websocket upgrade, so the access_token query parameter is accepted too.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if t := c.Query("access_token"); t != "" {
			return t, true
		}
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], true
}

// SessionFromContext returns the session set by AuthMiddleware.
func SessionFromContext(c *gin.Context) (*models.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*models.Session)
	return s, ok && s.Authenticated()
}

// RoleAuthMiddleware creates a Gin middleware for role-based authorization.
// It checks if the user role (from JWT claims) is one of the allowed roles.
func RoleAuthMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("userRole")
		if !exists {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "User role not found in token claims", ""))
			return
		}

		roleStr, ok := userRole.(string)
		if !ok {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "User role in token is not a string", ""))
			return
		}

		for _, r := range allowedRoles {
			if strings.EqualFold(roleStr, r) {
				c.Next()
				return
			}
		}

		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden,
			"You do not have permission to access this resource", "Required roles: "+strings.Join(allowedRoles, ", ")))
	}
}
