package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rmitchellscott/couchpilot/internal/database"
)

// DeviceAuthMiddleware authenticates agent requests via the Access-Token
// header, which carries the per-device API key issued at activation. The bare
// numeric device id is never accepted as a credential.
func DeviceAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("Access-Token")
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Device token required"})
			c.Abort()
			return
		}

		device, err := database.NewDeviceService(database.GetDB()).GetDeviceByAPIKey(apiKey)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid device token"})
			c.Abort()
			return
		}

		c.Set("device", device)
		c.Next()
	}
}

// RequireDevice ensures a device is authenticated and returns it
func RequireDevice(c *gin.Context) (*database.Device, bool) {
	if device, exists := c.Get("device"); exists {
		return device.(*database.Device), true
	}
	c.JSON(http.StatusUnauthorized, gin.H{"error": "Device authentication required"})
	return nil, false
}
