package database

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory SQLite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	for _, model := range GetAllModels() {
		if err := db.AutoMigrate(model); err != nil {
			t.Fatalf("failed to migrate %T: %v", model, err)
		}
	}

	return db
}

// newTestOwner creates a user for tests that need device ownership.
func newTestOwner(t *testing.T, db *gorm.DB, username string) *User {
	t.Helper()

	user, err := NewUserService(db).CreateUser(username, "correct horse battery staple")
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// newActiveDevice registers and activates a device in one step.
func newActiveDevice(t *testing.T, db *gorm.DB, ownerID int64, publicKey string) *Device {
	t.Helper()

	ds := NewDeviceService(db)
	_, token, err := ds.IssueRegistration(ownerID, "test device")
	if err != nil {
		t.Fatalf("failed to issue registration: %v", err)
	}

	device, err := ds.Activate(token, publicKey, "test device")
	if err != nil {
		t.Fatalf("failed to activate device: %v", err)
	}
	return device
}
