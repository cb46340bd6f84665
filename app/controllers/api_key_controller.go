package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/quicktoolshq/quicktools/app/models"
	"github.com/quicktoolshq/quicktools/app/repository"
	"github.com/quicktoolshq/quicktools/internal/pkg/entitlements"
	"github.com/quicktoolshq/quicktools/internal/pkg/middleware"
)

type createAPIKeyRequest struct {
	Name string `json:"name"`
}

// HandleCreateAPIKey issues a new API key. The raw secret is returned once
// and only its hash is stored.
func HandleCreateAPIKey(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := entitlements.RequireAPIAccess(user); err != nil {
		return respondError(c, err)
	}

	var req createAPIKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "default"
	}

	key, rawSecret, err := models.NewAPIKey(user.ID, name)
	if err != nil {
		return respondError(c, err)
	}

	if err := repository.GetGlobalFactory().GetAPIKeyRepository().Create(key); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":         key.ID,
		"name":       key.Name,
		"key":        rawSecret,
		"key_prefix": key.KeyPrefix,
		"created_at": key.CreatedAt,
	})
}

// HandleListAPIKeys lists the caller's API keys without secrets.
func HandleListAPIKeys(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := entitlements.RequireAPIAccess(user); err != nil {
		return respondError(c, err)
	}

	keys, err := repository.GetGlobalFactory().GetAPIKeyRepository().ListByUserID(user.ID)
	if err != nil {
		return respondError(c, err)
	}

	out := make([]fiber.Map, 0, len(keys))
	for _, key := range keys {
		out = append(out, fiber.Map{
			"id":           key.ID,
			"name":         key.Name,
			"key_prefix":   key.KeyPrefix,
			"is_active":    key.IsActive,
			"last_used_at": formatTimePtr(key.LastUsedAt),
			"created_at":   key.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"keys": out})
}

// HandleRevokeAPIKey deletes one of the caller's API keys. Revocation is a
// hard delete; the key stops authenticating immediately and cannot be
// restored.
func HandleRevokeAPIKey(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := entitlements.RequireAPIAccess(user); err != nil {
		return respondError(c, err)
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return badRequest(c, "invalid API key id")
	}

	if err := repository.GetGlobalFactory().GetAPIKeyRepository().Delete(user.ID, uint(id)); err != nil {
		return respondError(c, err)
	}
	middleware.ForgetAPIKeyUsage(uint(id))
	return c.JSON(fiber.Map{"ok": true})
}
