package entitlements

import (
	"errors"

	"github.com/quicktoolshq/quicktools/app/models"
	"github.com/quicktoolshq/quicktools/internal/pkg/ledger"
)

// ErrForbidden is returned when an operation requires API access the account
// has not unlocked, regardless of its current credit balance.
var ErrForbidden = errors.New("api access required")

type Tier string

const (
	TierCommunity Tier = "Community"
	TierEmail     Tier = "Email"
	TierPriority  Tier = "Priority"
	TierDedicated Tier = "Dedicated"
)

// Lifetime purchase thresholds for support tiers. The highest threshold met
// wins. Values match the standard, pro and business pack sizes.
const (
	EmailTierThreshold     = 500
	PriorityTierThreshold  = 1200
	DedicatedTierThreshold = 5000
)

// SupportTier derives the support tier label from lifetime credits purchased.
// The tier is display/routing metadata only and carries no access-control
// effect.
func SupportTier(creditsPurchasedTotal int) Tier {
	switch {
	case creditsPurchasedTotal >= DedicatedTierThreshold:
		return TierDedicated
	case creditsPurchasedTotal >= PriorityTierThreshold:
		return TierPriority
	case creditsPurchasedTotal >= EmailTierThreshold:
		return TierEmail
	default:
		return TierCommunity
	}
}

// ResponseTime returns the advertised support response window for a tier.
func ResponseTime(tier Tier) string {
	switch tier {
	case TierDedicated:
		return "We'll respond within 12 hours."
	case TierPriority:
		return "We'll respond within 24 hours."
	case TierEmail:
		return "We'll respond within 48 hours."
	default:
		return "We'll review your message and respond when possible."
	}
}

// RequireCredits fails with ledger.ErrInsufficientCredits when the account
// has no spendable balance. Handlers call this before running a costly
// transform on the direct-charge path.
func RequireCredits(user *models.User) error {
	if user.CreditsBalance <= 0 {
		return ledger.ErrInsufficientCredits
	}
	return nil
}

// RequireAPIAccess fails with ErrForbidden when the account has not unlocked
// programmatic access. Balance is not consulted here.
func RequireAPIAccess(user *models.User) error {
	if !user.APIAccessUnlocked {
		return ErrForbidden
	}
	return nil
}

// APIAccess reports the stored one-way unlock flag.
func APIAccess(user *models.User) bool {
	return user.APIAccessUnlocked
}
