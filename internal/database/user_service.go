package database

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService handles user-related database operations
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// CreateUser creates a user with a bcrypt-hashed password
func (us *UserService) CreateUser(username, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := us.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID returns a user by ID
func (us *UserService) GetUserByID(userID int64) (*User, error) {
	var user User
	if err := us.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername returns a user by username
func (us *UserService) GetUserByUsername(username string) (*User, error) {
	var user User
	if err := us.db.First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Authenticate verifies a username/password pair and returns the user.
// Returns ErrNotFound for both unknown users and wrong passwords.
func (us *UserService) Authenticate(username, password string) (*User, error) {
	user, err := us.GetUserByUsername(username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrNotFound
	}
	return user, nil
}
