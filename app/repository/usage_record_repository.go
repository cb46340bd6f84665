package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/quicktoolshq/quicktools/app/models"
)

// usageRecordRepository implements the UsageRecordRepository interface
type usageRecordRepository struct {
	db *gorm.DB
}

// NewUsageRecordRepository creates a new usage record repository instance
func NewUsageRecordRepository(db *gorm.DB) UsageRecordRepository {
	return &usageRecordRepository{db: db}
}

// Create appends a usage record. Records are never updated or deleted.
func (r *usageRecordRepository) Create(record *models.UsageRecord) error {
	return r.db.Create(record).Error
}

// CountByUserID returns the total number of processed files for a user
func (r *usageRecordRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.UsageRecord{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// CountByUserIDAndTool returns how often a user ran one specific tool
func (r *usageRecordRepository) CountByUserIDAndTool(userID uint, tool string) (int64, error) {
	var count int64
	err := r.db.Model(&models.UsageRecord{}).
		Where("user_id = ? AND tool = ?", userID, tool).
		Count(&count).Error
	return count, err
}

// GetRecentByUserID returns the newest usage records for a user
func (r *usageRecordRepository) GetRecentByUserID(userID uint, limit int) ([]models.UsageRecord, error) {
	var records []models.UsageRecord
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// GetToolBreakdown returns per-tool usage counts for a user
func (r *usageRecordRepository) GetToolBreakdown(userID uint) (map[string]int64, error) {
	var results []struct {
		Tool  string `json:"tool"`
		Count int64  `json:"count"`
	}

	err := r.db.Model(&models.UsageRecord{}).
		Select("tool, COUNT(*) as count").
		Where("user_id = ?", userID).
		Group("tool").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get tool breakdown: %w", err)
	}

	breakdown := make(map[string]int64, len(results))
	for _, result := range results {
		breakdown[result.Tool] = result.Count
	}
	return breakdown, nil
}

// GetDailyCounts returns daily processing counts for a user over a date range
func (r *usageRecordRepository) GetDailyCounts(userID uint, startDate, endDate time.Time) ([]models.DailyUsage, error) {
	var results []struct {
		Date  string `json:"date"`
		Count int64  `json:"count"`
	}

	// Use DATE_FORMAT for MySQL compatibility and proper date formatting
	err := r.db.Model(&models.UsageRecord{}).
		Select("DATE_FORMAT(created_at, '%Y-%m-%d') as date, COUNT(*) as count").
		Where("user_id = ? AND created_at BETWEEN ? AND ?", userID, startDate, endDate).
		Group("DATE_FORMAT(created_at, '%Y-%m-%d')").
		Order("date").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get daily usage stats: %w", err)
	}

	daily := make([]models.DailyUsage, len(results))
	for i, result := range results {
		daily[i] = models.DailyUsage{
			Date:  result.Date,
			Count: int(result.Count),
		}
	}
	return daily, nil
}
