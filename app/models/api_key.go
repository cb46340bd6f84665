package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// APIKeyPrefix marks raw API secrets so clients and middleware can tell them
// apart from session tokens.
const APIKeyPrefix = "qkt_live_"

// APIKey stores a hashed API secret for programmatic access. Keys can only be
// created for accounts with APIAccessUnlocked and are hard-deleted on revoke.
type APIKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	KeyHash    string     `gorm:"type:char(64);uniqueIndex;not null" json:"-"`
	KeyPrefix  string     `gorm:"type:varchar(20);default:''" json:"key_prefix"`
	Name       string     `gorm:"type:varchar(100)" json:"name"`
	IsActive   bool       `gorm:"not null;default:true" json:"is_active"`
	LastUsedAt *time.Time `gorm:"type:timestamp;default:null" json:"last_used_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// NewAPIKey generates key material for a user and returns the model plus the
// raw secret. The raw secret is shown once and never stored.
func NewAPIKey(userID uint, name string) (*APIKey, string, error) {
	rawKey, prefix, hash, err := generateAPIKeyMaterial()
	if err != nil {
		return nil, "", err
	}
	key := &APIKey{
		UserID:    userID,
		KeyHash:   hash,
		KeyPrefix: prefix,
		Name:      strings.TrimSpace(name),
		IsActive:  true,
	}
	return key, rawKey, nil
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

func generateAPIKeyMaterial() (string, string, string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", err
	}
	encoded := strings.ToLower(apiKeyEncoding.EncodeToString(b))
	rawKey := APIKeyPrefix + encoded
	if len(rawKey) < 16 {
		return "", "", "", fmt.Errorf("api key generation failed: key too short")
	}
	prefix := rawKey[:16]
	hash := HashAPIKey(rawKey)
	return rawKey, prefix, hash, nil
}
