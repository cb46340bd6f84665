package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/quicktoolshq/quicktools/app/repository"
	"github.com/quicktoolshq/quicktools/internal/pkg/entitlements"
)

// HandleGetAccount returns account information for the authenticated user.
func HandleGetAccount(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	tier := entitlements.SupportTier(user.CreditsPurchasedTotal)

	return c.JSON(fiber.Map{
		"id":                      user.ID,
		"name":                    user.Name,
		"email":                   user.Email,
		"status":                  user.Status,
		"credits_balance":         user.CreditsBalance,
		"credits_purchased_total": user.CreditsPurchasedTotal,
		"credits_lifetime_used":   user.CreditsLifetimeUsed,
		"api_access_unlocked":     user.APIAccessUnlocked,
		"support_tier":            tier,
		"created_at":              user.CreatedAt.UTC().Format(time.RFC3339),
		"last_purchase_at":        formatTimePtr(user.LastPurchaseAt),
	})
}

// HandleGetUsageStats returns processing statistics for the authenticated user.
func HandleGetUsageStats(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	usageRepo := repository.GetGlobalFactory().GetUsageRecordRepository()

	total, err := usageRepo.CountByUserID(user.ID)
	if err != nil {
		return respondError(c, err)
	}

	breakdown, err := usageRepo.GetToolBreakdown(user.ID)
	if err != nil {
		return respondError(c, err)
	}

	recent, err := usageRepo.GetRecentByUserID(user.ID, 20)
	if err != nil {
		return respondError(c, err)
	}

	now := time.Now()
	daily, err := usageRepo.GetDailyCounts(user.ID, now.AddDate(0, 0, -30), now)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"total_processed":       total,
		"credits_balance":       user.CreditsBalance,
		"credits_lifetime_used": user.CreditsLifetimeUsed,
		"by_tool":               breakdown,
		"recent":                recent,
		"daily":                 daily,
	})
}
