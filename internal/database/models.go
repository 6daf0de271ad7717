package database

import (
	"time"
)

// User represents an owner account in the system
type User struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:255;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"` // Never return password hash in JSON
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Associations
	Devices []Device `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
}

// Device represents a remote machine running the couchpilot agent.
// A device is either pending (registration token set, inactive) or active
// (public key stored, token cleared); activation is the only transition.
type Device struct {
	ID      int64  `gorm:"primaryKey" json:"id"`
	OwnerID int64  `gorm:"not null;index" json:"owner_id"`
	Name    string `gorm:"size:255;not null" json:"name"`

	// Set while pending, cleared atomically on activation
	RegistrationToken *string `gorm:"size:64;uniqueIndex" json:"-"`

	// PEM-encoded RSA public key, present only once active. The matching
	// private key never leaves the device.
	PublicKey string `gorm:"type:text" json:"-"`

	// Per-device secret the agent presents on poll/check-in/report calls
	APIKey string `gorm:"size:64;index" json:"-"`

	IsActive    bool       `gorm:"default:false" json:"is_active"`
	LastCheckIn *time.Time `json:"last_check_in,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Associations
	Owner    User      `gorm:"foreignKey:OwnerID" json:"-"`
	Commands []Command `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE" json:"-"`
}

// OnlineWindow is how recently a device must have checked in to count as
// online. Advisory only, surfaced in owner-facing listings.
const OnlineWindow = 60 * time.Second

// IsOnline reports whether the device checked in within OnlineWindow of now.
func (d *Device) IsOnline(now time.Time) bool {
	return d.LastCheckIn != nil && now.Sub(*d.LastCheckIn) < OnlineWindow
}

// Command represents one encrypted unit of work destined for a single device.
// The payload is ciphertext end to end; the server never sees plaintext.
type Command struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	DeviceID int64  `gorm:"not null;index" json:"device_id"`
	Type     string `gorm:"size:32;not null" json:"type"`

	// Base64-encoded RSA-OAEP ciphertext
	Payload string `gorm:"type:text;not null" json:"payload"`

	DueAt         *time.Time `gorm:"index" json:"due_at,omitempty"`
	IsSent        bool       `gorm:"default:false;index" json:"is_sent"`
	FailureReason *string    `gorm:"type:text" json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`

	// Association
	Device Device `gorm:"foreignKey:DeviceID" json:"-"`
}

// GetAllModels returns all models for auto-migration
func GetAllModels() []interface{} {
	return []interface{}{
		&User{},
		&Device{},
		&Command{},
	}
}
