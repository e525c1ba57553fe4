package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fleet_tracker/internal/apperr"
	"fleet_tracker/internal/auth"
)

const (
	HeaderDeviceID = "X-Device-ID"
	HeaderAPIKey   = "X-API-Key"

	deviceIDKey = "device_id"
)

// RequireDeviceCredentials admits only the X-Device-ID/X-API-Key header
// pair. Session tokens are not accepted here, so a token cannot be used to
// mint another one.
func RequireDeviceCredentials(gate *auth.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID, secret := c.GetHeader(HeaderDeviceID), c.GetHeader(HeaderAPIKey)
		if deviceID == "" || secret == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Both X-Device-ID and X-API-Key headers are required"})
			return
		}
		id, err := gate.Authenticate(c.Request.Context(), deviceID, secret)
		if err != nil {
			abortAuth(c, err)
			return
		}
		c.Set(deviceIDKey, id)
		c.Next()
	}
}

// RequireDevice authenticates the calling device before any handler runs.
// It accepts the X-Device-ID/X-API-Key header pair, or a session token
// issued by POST /device/token either as a Bearer header or, for WebSocket
// clients, a "token" query parameter.
func RequireDevice(gate *auth.Gate, tokens *auth.TokenIssuer) gin.HandlerFunc {
	credentials := RequireDeviceCredentials(gate)
	return func(c *gin.Context) {
		if c.GetHeader(HeaderDeviceID) != "" || c.GetHeader(HeaderAPIKey) != "" {
			credentials(c)
			return
		}

		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing device credentials"})
			return
		}

		id, err := tokens.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(deviceIDKey, id)
		c.Next()
	}
}

// DeviceID returns the device authenticated by RequireDevice.
func DeviceID(c *gin.Context) string {
	return c.GetString(deviceIDKey)
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return c.Query("token")
}

func abortAuth(c *gin.Context, err error) {
	switch {
	case apperr.IsValidation(err):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrUnknownDevice):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Device ID not registered"})
	case errors.Is(err, apperr.ErrInvalidCredential):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid device credential"})
	default:
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Device authentication failed.")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
