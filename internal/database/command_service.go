package database

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// CommandService handles command queue database operations
type CommandService struct {
	db *gorm.DB
}

// NewCommandService creates a new command service
func NewCommandService(db *gorm.DB) *CommandService {
	return &CommandService{db: db}
}

// CreateCommand persists a new unsent command for a device. The payload must
// already be ciphertext; this layer never sees plaintext.
func (cs *CommandService) CreateCommand(deviceID int64, cmdType, payload string, dueAt *time.Time) (*Command, error) {
	command := &Command{
		DeviceID: deviceID,
		Type:     cmdType,
		Payload:  payload,
		DueAt:    dueAt,
		IsSent:   false,
	}
	if err := cs.db.Create(command).Error; err != nil {
		return nil, err
	}
	return command, nil
}

// PendingForDevice returns all unsent commands for a device that are due,
// oldest first. Commands with a future due_at stay invisible until due.
func (cs *CommandService) PendingForDevice(deviceID int64) ([]Command, error) {
	var commands []Command
	err := cs.db.
		Where("device_id = ? AND is_sent = ? AND (due_at IS NULL OR due_at <= ?)",
			deviceID, false, time.Now()).
		Order("created_at ASC").
		Find(&commands).Error
	return commands, err
}

// ClaimPending fetches the due, unsent commands for a device and marks each
// as sent before returning it. The mark step is a compare-and-set on
// is_sent = false, so when two polls race over the same queue every command
// lands in exactly one response. Delivery is at most once: a command included
// here is considered delivered regardless of what the device does with it.
func (cs *CommandService) ClaimPending(deviceID int64) ([]Command, error) {
	pending, err := cs.PendingForDevice(deviceID)
	if err != nil {
		return nil, err
	}

	claimed := make([]Command, 0, len(pending))
	for _, cmd := range pending {
		res := cs.db.Model(&Command{}).
			Where("id = ? AND is_sent = ?", cmd.ID, false).
			Update("is_sent", true)
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to a concurrent poll
			continue
		}
		cmd.IsSent = true
		claimed = append(claimed, cmd)
	}
	return claimed, nil
}

// MarkSent flips a command to sent. Terminal and idempotent: a second call is
// a no-op and never errors.
func (cs *CommandService) MarkSent(commandID int64) error {
	res := cs.db.Model(&Command{}).
		Where("id = ? AND is_sent = ?", commandID, false).
		Update("is_sent", true)
	return res.Error
}

// MarkFailed records a failure reason and flips the command to sent. The
// usual caller is a device reporting back on a command that polling already
// marked sent, so this conditions only on the reason being unset: the first
// reported reason wins and later calls are no-ops.
func (cs *CommandService) MarkFailed(commandID int64, reason string) error {
	res := cs.db.Model(&Command{}).
		Where("id = ? AND failure_reason IS NULL", commandID).
		Updates(map[string]interface{}{
			"is_sent":        true,
			"failure_reason": reason,
		})
	return res.Error
}

// GetCommandByID returns a command by its ID
func (cs *CommandService) GetCommandByID(commandID int64) (*Command, error) {
	var command Command
	if err := cs.db.First(&command, "id = ?", commandID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &command, nil
}

// ListByDevice returns all commands for a device, newest first, for the
// owner-facing history view.
func (cs *CommandService) ListByDevice(deviceID int64) ([]Command, error) {
	var commands []Command
	err := cs.db.Where("device_id = ?", deviceID).Order("created_at DESC").Find(&commands).Error
	return commands, err
}
