package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/quicktoolshq/quicktools/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, *models.APIKey, error)
	Update(user *models.User) error
	Count() (int64, error)
}

// UsageRecordRepository defines the interface for the append-only usage log
type UsageRecordRepository interface {
	Create(record *models.UsageRecord) error
	CountByUserID(userID uint) (int64, error)
	CountByUserIDAndTool(userID uint, tool string) (int64, error)
	GetRecentByUserID(userID uint, limit int) ([]models.UsageRecord, error)
	GetToolBreakdown(userID uint) (map[string]int64, error)
	GetDailyCounts(userID uint, startDate, endDate time.Time) ([]models.DailyUsage, error)
}

// APIKeyRepository defines the interface for API key management
type APIKeyRepository interface {
	Create(key *models.APIKey) error
	GetByID(userID, id uint) (*models.APIKey, error)
	ListByUserID(userID uint) ([]models.APIKey, error)
	Delete(userID, id uint) error
	TouchLastUsed(id uint, at time.Time) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User   UserRepository
	Usage  UsageRecordRepository
	APIKey APIKeyRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:   NewUserRepository(db),
		Usage:  NewUsageRecordRepository(db),
		APIKey: NewAPIKeyRepository(db),
	}
}
