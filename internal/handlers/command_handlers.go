package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rmitchellscott/couchpilot/internal/auth"
	"github.com/rmitchellscott/couchpilot/internal/command"
	"github.com/rmitchellscott/couchpilot/internal/database"
	"github.com/rmitchellscott/couchpilot/internal/keycrypt"
	"github.com/rmitchellscott/couchpilot/internal/logging"
	"github.com/rmitchellscott/couchpilot/internal/metrics"
	"github.com/rmitchellscott/couchpilot/internal/middleware"
)

// EnqueueCommandHandler accepts a plaintext action from an owner, encrypts it
// under the target device's public key and queues the ciphertext. The
// plaintext never reaches storage; this handler is the encryption boundary.
func EnqueueCommandHandler(c *gin.Context) {
	user, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	var req struct {
		DeviceID int64           `json:"device_id" binding:"required"`
		Type     string          `json:"type" binding:"required"`
		Payload  command.Payload `json:"payload" binding:"required"`
		DueAt    *time.Time      `json:"due_at,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmdType, err := command.ParseType(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Payload.Validate(cmdType); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deviceService := database.NewDeviceService(database.GetDB())
	device, err := deviceService.GetOwnedDevice(req.DeviceID, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
		case errors.Is(err, database.ErrAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load device"})
		}
		return
	}

	if !device.IsActive {
		c.JSON(http.StatusConflict, gin.H{"error": "Device not activated"})
		return
	}

	pub, err := keycrypt.ParsePublicKey(device.PublicKey)
	if err != nil {
		logging.ErrorWithComponent(logging.ComponentCommands, "Stored public key unusable", "device_id", device.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Device key unusable"})
		return
	}

	plaintext, err := req.Payload.Encode()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to encode payload"})
		return
	}

	ciphertext, err := keycrypt.Encrypt(plaintext, pub)
	if err != nil {
		logging.ErrorWithComponent(logging.ComponentCommands, "Payload encryption failed", "device_id", device.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encrypt payload"})
		return
	}

	commandService := database.NewCommandService(database.GetDB())
	cmd, err := commandService.CreateCommand(device.ID, string(cmdType), ciphertext, req.DueAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create command"})
		return
	}

	metrics.CommandEnqueued(string(cmdType))
	logging.InfoWithComponent(logging.ComponentCommands, "Command enqueued",
		"command_id", cmd.ID, "device_id", device.ID, "type", cmdType,
		"request_id", middleware.GetRequestID(c))
	c.JSON(http.StatusCreated, gin.H{"command": cmd})
}

// ListCommandsHandler returns a device's command history, newest first,
// including sent state and any failure reason.
func ListCommandsHandler(c *gin.Context) {
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
	if _, err := deviceService.GetOwnedDevice(deviceID, user.ID); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
		case errors.Is(err, database.ErrAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load device"})
		}
		return
	}

	commandService := database.NewCommandService(database.GetDB())
	commands, err := commandService.ListByDevice(deviceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch commands"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"commands": commands})
}

// CheckInHandler records device liveness. Advisory only; nothing downstream
// depends on it for correctness.
func CheckInHandler(c *gin.Context) {
	device, ok := auth.RequireDevice(c)
	if !ok {
		return
	}

	deviceService := database.NewDeviceService(database.GetDB())
	if err := deviceService.UpdateLastCheckIn(device.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record check-in"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PollHandler hands the device its due, unsent commands. Every command in the
// response has already been marked sent: delivery is at most once, and a
// command lost after this response has no redelivery path.
func PollHandler(c *gin.Context) {
	device, ok := auth.RequireDevice(c)
	if !ok {
		return
	}

	metrics.PollReceived()

	deviceService := database.NewDeviceService(database.GetDB())
	if err := deviceService.UpdateLastCheckIn(device.ID); err != nil {
		logging.WarnWithComponent(logging.ComponentPoll, "Failed to update check-in", "device_id", device.ID, "error", err)
	}

	commandService := database.NewCommandService(database.GetDB())
	commands, err := commandService.ClaimPending(device.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to poll commands"})
		return
	}

	if len(commands) > 0 {
		metrics.CommandsDelivered(len(commands))
		logging.InfoWithComponent(logging.ComponentPoll, "Commands delivered",
			"device_id", device.ID, "count", len(commands),
			"request_id", middleware.GetRequestID(c))
	}

	c.JSON(http.StatusOK, gin.H{"commands": commands})
}

// ReportFailureHandler records a device-reported execution failure. Idempotent:
// the first reported reason for a command is the one that sticks.
func ReportFailureHandler(c *gin.Context) {
	device, ok := auth.RequireDevice(c)
	if !ok {
		return
	}

	commandID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid command ID"})
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required,max=1024"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	commandService := database.NewCommandService(database.GetDB())
	cmd, err := commandService.GetCommandByID(commandID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Command not found"})
		return
	}
	if cmd.DeviceID != device.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	if err := commandService.MarkFailed(commandID, req.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record failure"})
		return
	}

	metrics.CommandFailed()
	logging.WarnWithComponent(logging.ComponentCommands, "Command failure reported",
		"command_id", commandID, "device_id", device.ID, "reason", req.Reason,
		"request_id", middleware.GetRequestID(c))
	c.JSON(http.StatusOK, gin.H{"success": true})
}
