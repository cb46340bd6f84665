package ledger

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quicktoolshq/quicktools/app/models"
)

// Repository provides the atomic account access the ledger service builds on.
type Repository interface {
	// MutateAccount loads the account row under a write lock, applies mutate,
	// and persists the result in the same transaction. When mutate returns an
	// error the transaction rolls back and the error is returned unchanged.
	MutateAccount(ctx context.Context, userID uint, mutate func(user *models.User) error) error
	GetAccount(ctx context.Context, userID uint) (*models.User, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM. Row-level locking
// (SELECT ... FOR UPDATE) serializes concurrent mutations per account.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) MutateAccount(ctx context.Context, userID uint, mutate func(user *models.User) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, userID).Error; err != nil {
			return err
		}

		if err := mutate(&user); err != nil {
			return err
		}

		return tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"credits_balance":         user.CreditsBalance,
			"credits_purchased_total": user.CreditsPurchasedTotal,
			"credits_lifetime_used":   user.CreditsLifetimeUsed,
			"api_access_unlocked":     user.APIAccessUnlocked,
			"last_purchase_at":        user.LastPurchaseAt,
			"last_purchase_amount":    user.LastPurchaseAmount,
		}).Error
	})
}

func (r *gormRepository) GetAccount(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// TxGranter grants purchase credits inside a caller-owned transaction, so
// the grant commits or rolls back together with the caller's own writes.
// Webhook fulfillment uses this to keep the grant and the processed-mark of
// a payment event atomic.
type TxGranter struct{}

func (TxGranter) Grant(ctx context.Context, tx *gorm.DB, userID uint, amount int, unlocksAPI bool) error {
	return NewService(NewRepository(tx)).Grant(ctx, userID, amount, unlocksAPI)
}
