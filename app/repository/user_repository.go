package repository

import (
	"strings"

	"gorm.io/gorm"

	"github.com/quicktoolshq/quicktools/app/models"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email address
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByAPIKeyHash resolves an active API key hash to its user and key record.
func (r *userRepository) GetByAPIKeyHash(hash string) (*models.User, *models.APIKey, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, nil, gorm.ErrRecordNotFound
	}
	var key models.APIKey
	if err := r.db.Where("key_hash = ? AND is_active = ?", trimmed, true).First(&key).Error; err != nil {
		return nil, nil, err
	}
	var user models.User
	if err := r.db.First(&user, key.UserID).Error; err != nil {
		return nil, nil, err
	}
	return &user, &key, nil
}

// Update updates an existing user in the database
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// Count returns the total number of users
func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}
