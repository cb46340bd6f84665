package archive

import (
	"errors"
	"fmt"
	"time"

	"github.com/quicktoolshq/quicktools/internal/pkg/env"
)

// Config holds S3 archive configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads S3 configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("S3_ARCHIVE_ENABLED", "false") == "true",
	}

	// Validate required fields if the archive is enabled
	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the S3 archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the S3 archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the S3 archive is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if the S3 archive is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// GetObjectKey generates a standardized S3 object key for a delivered artifact
func (c *Config) GetObjectKey(fileID, filename string, at time.Time) string {
	// Format: artifacts/YYYY/MM/fileID/filename
	return fmt.Sprintf("artifacts/%04d/%02d/%s/%s", at.Year(), int(at.Month()), fileID, filename)
}

// GetAppEnv returns the current application environment
func GetAppEnv() string {
	return env.GetEnv("APP_ENV", "dev")
}

// GetBucketName returns the bucket name as configured (no automatic prefixing)
func (c *Config) GetBucketName() string {
	return c.BucketName
}
