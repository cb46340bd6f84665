package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/quicktoolshq/quicktools/app/models"
	"github.com/quicktoolshq/quicktools/app/repository"
	"github.com/quicktoolshq/quicktools/internal/pkg/token"
	"github.com/quicktoolshq/quicktools/internal/pkg/usercontext"
)

// JWTAuthMiddleware authenticates requests carrying a bearer access token
// and loads the user context for downstream handlers.
func JWTAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := extractBearerToken(c)
		if raw == "" {
			return unauthorized(c, "Missing access token")
		}

		claims, err := token.ParseToken(raw)
		if err != nil {
			return unauthorized(c, "Invalid or expired access token")
		}

		repo := repository.GetGlobalFactory().GetUserRepository()
		user, err := repo.GetByID(claims.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return unauthorized(c, "Unknown user")
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "User lookup failed"})
		}

		if user.Status != models.STATUS_ACTIVE {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Account disabled"})
		}

		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     user.ID,
			Email:      user.Email,
			IsLoggedIn: true,
		})

		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": message})
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
