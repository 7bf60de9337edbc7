package middleware

import (
	"net/http"
	"strings"

	"chifoumi/internal/service"

	"github.com/gin-gonic/gin"
)

// JWT authenticates the request from the Authorization header (Bearer
// token) or, for clients that cannot set headers, a token query
// parameter. On success the user id is stored in the gin context under
// "user_id".
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}

		userID, err := service.ParseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
