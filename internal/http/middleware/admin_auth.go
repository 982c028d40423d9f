package middleware

import (
	"net/http"
	"strings"

	"waitlist_contest/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminSubjectKey holds the token subject on the gin context.
const AdminSubjectKey = "admin_subject"

// AdminAuth requires an "Authorization: Bearer <token>" admin token.
func AdminAuth(tokens *service.AdminTokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		subject, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(AdminSubjectKey, subject)
		c.Next()
	}
}
