package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/quicktoolshq/quicktools/app/models"
	"github.com/quicktoolshq/quicktools/app/repository"
	"github.com/quicktoolshq/quicktools/internal/pkg/cache"
	"github.com/quicktoolshq/quicktools/internal/pkg/entitlements"
	"github.com/quicktoolshq/quicktools/internal/pkg/usercontext"
)

// APIKeyAuthMiddleware authenticates requests carrying a user API key header.
// API access additionally requires the caller's account to have it unlocked
// through a qualifying credit pack purchase.
func APIKeyAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		hash := models.HashAPIKey(apiKey)
		repo := repository.GetGlobalFactory().GetUserRepository()
		user, key, err := repo.GetByAPIKeyHash(hash)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
			}
			log.Errorf("api key lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key verification failed"})
		}

		if user.Status != models.STATUS_ACTIVE {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "User inactive"})
		}

		if err := entitlements.RequireAPIAccess(user); err != nil {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "API access requires the Pro or Business credit pack"})
		}

		touchAPIKeyUsage(key.ID, user.ID)

		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     user.ID,
			Email:      user.Email,
			IsLoggedIn: true,
			ViaAPIKey:  true,
		})

		return c.Next()
	}
}

// lastUsedWriteInterval bounds how often a busy key writes its last-used
// timestamp to the database.
const lastUsedWriteInterval = time.Minute

func apiKeyUsageCacheKey(keyID uint) string {
	return fmt.Sprintf("apikey:last_used:%d", keyID)
}

// touchAPIKeyUsage refreshes the key's last-used timestamp best-effort. The
// write is coalesced through the cache so a key making hundreds of requests
// per minute costs one database update, not hundreds.
func touchAPIKeyUsage(keyID, userID uint) {
	cacheKey := apiKeyUsageCacheKey(keyID)
	if _, err := cache.Get(cacheKey); err == nil {
		return
	}
	if err := repository.GetGlobalFactory().GetAPIKeyRepository().TouchLastUsed(keyID, time.Now()); err != nil {
		log.Warnf("failed to update api key usage timestamp for user %d: %v", userID, err)
		return
	}
	if err := cache.Set(cacheKey, "1", lastUsedWriteInterval); err != nil {
		log.Debugf("api key usage cache write failed: %v", err)
	}
}

// ForgetAPIKeyUsage drops the coalescing entry for a revoked key.
func ForgetAPIKeyUsage(keyID uint) {
	if err := cache.Delete(apiKeyUsageCacheKey(keyID)); err != nil {
		log.Debugf("api key usage cache delete failed: %v", err)
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		bearer := strings.TrimSpace(auth[7:])
		if strings.HasPrefix(bearer, models.APIKeyPrefix) {
			return bearer
		}
	}
	return ""
}
