package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/quicktoolshq/quicktools/app/models"
)

// apiKeyRepository implements the APIKeyRepository interface
type apiKeyRepository struct {
	db *gorm.DB
}

// NewAPIKeyRepository creates a new API key repository instance
func NewAPIKeyRepository(db *gorm.DB) APIKeyRepository {
	return &apiKeyRepository{db: db}
}

// Create stores a new API key
func (r *apiKeyRepository) Create(key *models.APIKey) error {
	return r.db.Create(key).Error
}

// GetByID retrieves one of the user's API keys by ID
func (r *apiKeyRepository) GetByID(userID, id uint) (*models.APIKey, error) {
	var key models.APIKey
	err := r.db.Where("user_id = ?", userID).First(&key, id).Error
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// ListByUserID returns all API keys owned by a user, newest first
func (r *apiKeyRepository) ListByUserID(userID uint) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&keys).Error
	return keys, err
}

// Delete removes an API key permanently. Revoked keys leave no row behind;
// usage history lives in the usage records, not on the key.
func (r *apiKeyRepository) Delete(userID, id uint) error {
	result := r.db.Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.APIKey{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TouchLastUsed refreshes the last-used timestamp best-effort
func (r *apiKeyRepository) TouchLastUsed(id uint, at time.Time) error {
	return r.db.Model(&models.APIKey{}).
		Where("id = ?", id).
		Update("last_used_at", at).Error
}
