package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rmitchellscott/couchpilot/internal/auth"
	"github.com/rmitchellscott/couchpilot/internal/database"
	"github.com/rmitchellscott/couchpilot/internal/keycrypt"
	"github.com/rmitchellscott/couchpilot/internal/logging"
	"github.com/rmitchellscott/couchpilot/internal/metrics"
	"github.com/rmitchellscott/couchpilot/internal/middleware"
)

// deviceView is the owner-facing representation of a device
type deviceView struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	IsActive    bool       `json:"is_active"`
	Online      bool       `json:"online"`
	LastCheckIn *time.Time `json:"last_check_in,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toDeviceView(d *database.Device, now time.Time) deviceView {
	return deviceView{
		ID:          d.ID,
		Name:        d.Name,
		IsActive:    d.IsActive,
		Online:      d.IsOnline(now),
		LastCheckIn: d.LastCheckIn,
		CreatedAt:   d.CreatedAt,
	}
}

// CreateDeviceHandler registers a new pending device for the current user and
// returns its single-use registration token. The token is not retrievable
// again after this response.
func CreateDeviceHandler(c *gin.Context) {
	user, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required,max=255"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deviceService := database.NewDeviceService(database.GetDB())
	device, token, err := deviceService.IssueRegistration(user.ID, req.Name)
	if err != nil {
		logging.ErrorWithComponent(logging.ComponentDevices, "Failed to issue registration", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create device"})
		return
	}

	logging.InfoWithComponent(logging.ComponentDevices, "Registration issued",
		"device_id", device.ID, "owner_id", user.ID, "request_id", middleware.GetRequestID(c))
	c.JSON(http.StatusCreated, gin.H{
		"device":             toDeviceView(device, time.Now()),
		"registration_token": token,
	})
}

// ActivateDeviceHandler consumes a registration token presented by an agent,
// binding the device to its public key. The response includes the API key the
// agent must present on every poll. Activation failures are reported without
// detail so callers cannot probe for live tokens.
func ActivateDeviceHandler(c *gin.Context) {
	var req struct {
		Token     string `json:"token" binding:"required"`
		PublicKey string `json:"public_key" binding:"required"`
		Name      string `json:"name" binding:"required,max=255"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Reject unparsable keys before consuming the token
	if _, err := keycrypt.ParsePublicKey(req.PublicKey); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid public key"})
		return
	}

	deviceService := database.NewDeviceService(database.GetDB())
	device, err := deviceService.Activate(req.Token, req.PublicKey, req.Name)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Activation failed"})
			return
		}
		logging.ErrorWithComponent(logging.ComponentDevices, "Activation error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Activation failed"})
		return
	}

	metrics.DeviceActivated()
	logging.InfoWithComponent(logging.ComponentDevices, "Device activated",
		"device_id", device.ID, "request_id", middleware.GetRequestID(c))
	c.JSON(http.StatusOK, gin.H{
		"device_id": device.ID,
		"api_key":   device.APIKey,
	})
}

// GetDevicesHandler returns all devices for the current user
func GetDevicesHandler(c *gin.Context) {
	user, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	deviceService := database.NewDeviceService(database.GetDB())
	devices, err := deviceService.GetDevicesByOwner(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch devices"})
		return
	}

	now := time.Now()
	views := make([]deviceView, 0, len(devices))
	for i := range devices {
		views = append(views, toDeviceView(&devices[i], now))
	}

	c.JSON(http.StatusOK, gin.H{"devices": views})
}

// DeleteDeviceHandler removes a device and all of its commands
func DeleteDeviceHandler(c *gin.Context) {
	user, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	deviceID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid device ID"})
		return
	}

	deviceService := database.NewDeviceService(database.GetDB())
	if err := deviceService.DeleteDevice(deviceID, user.ID); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
		case errors.Is(err, database.ErrAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete device"})
		}
		return
	}

	logging.InfoWithComponent(logging.ComponentDevices, "Device deleted",
		"device_id", deviceID, "owner_id", user.ID, "request_id", middleware.GetRequestID(c))
	c.JSON(http.StatusOK, gin.H{"success": true})
}
