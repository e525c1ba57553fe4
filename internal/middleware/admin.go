package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const HeaderAdminKey = "X-Admin-Api-Key"

// RequireAdmin admits requests carrying the operator key in the
// X-Admin-Api-Key header. With no key configured every request is refused.
func RequireAdmin(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Admin API is not configured"})
			return
		}

		presented := c.GetHeader(HeaderAdminKey)
		if presented == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing X-Admin-Api-Key header"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
			logrus.WithField("client_ip", c.ClientIP()).Warn("Rejected admin request with a wrong key.")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid admin key"})
			return
		}

		c.Next()
	}
}
