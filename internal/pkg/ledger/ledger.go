package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/quicktoolshq/quicktools/app/models"
)

// ErrInsufficientCredits is returned by Spend when the account balance is
// zero. It is the single error condition of the ledger.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ErrInvalidAmount is returned by Grant for non-positive amounts.
var ErrInvalidAmount = errors.New("grant amount must be positive")

// Service performs all credit balance mutations. Every mutation runs through
// Repository.MutateAccount, which loads the account row under a write lock,
// applies the mutation, and commits in one transaction. A balance check and
// its decrement can therefore never interleave with another spend on the same
// account. Transforms must run outside these mutations; only the final
// balance change is transactional.
type Service struct {
	repo Repository
}

// NewService creates a ledger service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Snapshot is a read-only balance/entitlement view for display purposes.
type Snapshot struct {
	CreditsBalance        int  `json:"credits_balance"`
	CreditsPurchasedTotal int  `json:"credits_purchased_total"`
	CreditsLifetimeUsed   int  `json:"credits_lifetime_used"`
	APIAccessUnlocked     bool `json:"api_access_unlocked"`
}

// Grant credits an account with a purchase: balance and lifetime purchase
// total both increase by amount, last-purchase metadata is recorded, and the
// API access flag is set when unlocksAPI is true. The flag never reverts; a
// later grant with unlocksAPI=false leaves an already-set flag untouched.
func (s *Service) Grant(ctx context.Context, userID uint, amount int, unlocksAPI bool) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	return s.repo.MutateAccount(ctx, userID, func(user *models.User) error {
		now := time.Now()
		user.CreditsBalance += amount
		user.CreditsPurchasedTotal += amount
		user.LastPurchaseAt = &now
		user.LastPurchaseAmount = &amount
		if unlocksAPI {
			user.APIAccessUnlocked = true
		}
		return nil
	})
}

// Spend deducts exactly one credit and bumps the lifetime usage counter.
// Returns ErrInsufficientCredits when the balance is zero; the mutation is
// rolled back in that case, so the balance never goes negative.
func (s *Service) Spend(ctx context.Context, userID uint) error {
	return s.repo.MutateAccount(ctx, userID, func(user *models.User) error {
		if user.CreditsBalance <= 0 {
			return ErrInsufficientCredits
		}
		user.CreditsBalance--
		user.CreditsLifetimeUsed++
		return nil
	})
}

// GetSnapshot loads the current balance and entitlement counters.
func (s *Service) GetSnapshot(ctx context.Context, userID uint) (*Snapshot, error) {
	user, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		CreditsBalance:        user.CreditsBalance,
		CreditsPurchasedTotal: user.CreditsPurchasedTotal,
		CreditsLifetimeUsed:   user.CreditsLifetimeUsed,
		APIAccessUnlocked:     user.APIAccessUnlocked,
	}, nil
}
