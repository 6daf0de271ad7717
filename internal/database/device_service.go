package database

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DeviceService handles device-related database operations
type DeviceService struct {
	db *gorm.DB
}

// NewDeviceService creates a new device service
func NewDeviceService(db *gorm.DB) *DeviceService {
	return &DeviceService{db: db}
}

// IssueRegistration creates a device in the pending state and returns it
// together with its single-use registration token. The token is 128 bits from
// crypto/rand and is not retrievable again once this call returns.
func (ds *DeviceService) IssueRegistration(ownerID int64, name string) (*Device, string, error) {
	token, err := generateSecret(16)
	if err != nil {
		return nil, "", err
	}

	device := &Device{
		OwnerID:           ownerID,
		Name:              name,
		RegistrationToken: &token,
		IsActive:          false,
	}

	if err := ds.db.Create(device).Error; err != nil {
		return nil, "", err
	}

	return device, token, nil
}

// Activate consumes a registration token: it stores the device public key,
// issues the poll API key, updates the name and flips the device to active,
// clearing the token so it cannot be replayed.
//
// The token consumption is a single conditional UPDATE, so two concurrent
// activations with the same token cannot both succeed; the loser sees zero
// rows affected and gets ErrNotFound, same as a token that never existed.
func (ds *DeviceService) Activate(token, publicKey, name string) (*Device, error) {
	apiKey, err := generateSecret(32)
	if err != nil {
		return nil, err
	}

	res := ds.db.Model(&Device{}).
		Where("registration_token = ? AND is_active = ?", token, false).
		Updates(map[string]interface{}{
			"registration_token": nil,
			"public_key":         publicKey,
			"api_key":            apiKey,
			"name":               name,
			"is_active":          true,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	var device Device
	if err := ds.db.First(&device, "api_key = ?", apiKey).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

// GetDevicesByOwner returns all devices belonging to an owner, newest first
func (ds *DeviceService) GetDevicesByOwner(ownerID int64) ([]Device, error) {
	var devices []Device
	err := ds.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&devices).Error
	return devices, err
}

// GetDeviceByID returns a device by its ID
func (ds *DeviceService) GetDeviceByID(deviceID int64) (*Device, error) {
	var device Device
	if err := ds.db.First(&device, "id = ?", deviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &device, nil
}

// GetDeviceByAPIKey returns an active device by its poll API key
func (ds *DeviceService) GetDeviceByAPIKey(apiKey string) (*Device, error) {
	if apiKey == "" {
		return nil, ErrNotFound
	}
	var device Device
	err := ds.db.First(&device, "api_key = ? AND is_active = ?", apiKey, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &device, nil
}

// GetOwnedDevice returns a device after verifying it belongs to ownerID
func (ds *DeviceService) GetOwnedDevice(deviceID, ownerID int64) (*Device, error) {
	device, err := ds.GetDeviceByID(deviceID)
	if err != nil {
		return nil, err
	}
	if device.OwnerID != ownerID {
		return nil, ErrAccessDenied
	}
	return device, nil
}

// UpdateLastCheckIn records a device check-in for liveness display
func (ds *DeviceService) UpdateLastCheckIn(deviceID int64) error {
	return ds.db.Model(&Device{}).Where("id = ?", deviceID).
		Update("last_check_in", time.Now()).Error
}

// DeleteDevice removes a device owned by ownerID along with its commands
func (ds *DeviceService) DeleteDevice(deviceID, ownerID int64) error {
	if _, err := ds.GetOwnedDevice(deviceID, ownerID); err != nil {
		return err
	}
	return ds.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_id = ?", deviceID).Delete(&Command{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Device{}, "id = ?", deviceID).Error
	})
}

// generateSecret returns n bytes from crypto/rand as a hex string
func generateSecret(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
