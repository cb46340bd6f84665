package models

import "time"

// UsageRecord tracks a single processing operation. Records are append-only:
// they are created after a transform succeeds and never updated. Whether a
// credit was charged for the operation is tracked on the user, not here.
type UsageRecord struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	Tool             string    `gorm:"type:varchar(50);not null;index" json:"tool"`
	OriginalFilename string    `gorm:"type:varchar(255)" json:"original_filename"`
	FileID           string    `gorm:"type:varchar(36);index" json:"file_id"`
	OutputFormat     string    `gorm:"type:varchar(10)" json:"output_format"`
	OriginalSize     int64     `gorm:"default:0" json:"original_size"`
	OutputSize       int64     `gorm:"default:0" json:"output_size"`
	ProcessingMs     int64     `gorm:"default:0" json:"processing_ms"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// DailyUsage is one day of processing activity for the stats endpoints
type DailyUsage struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
