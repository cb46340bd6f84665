package billing

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quicktoolshq/quicktools/app/models"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	// FulfillEventOnce upserts the event, locks its row and, unless a prior
	// delivery already set processed_at, runs fulfill and the processed-mark
	// inside the same transaction. A fulfill or mark failure rolls the whole
	// delivery back, so a provider redelivery retries it cleanly. Returns
	// whether fulfillment ran.
	FulfillEventOnce(ctx context.Context, event *models.BillingWebhookEvent, fulfill func(tx *gorm.DB) error) (bool, error)
	MarkWebhookProcessed(id uint, processingError string) error
	MarkWebhookFailed(id uint, processingError string) error
	GetUserByStripeCustomerID(customerID string) (*models.User, error)
	SetStripeCustomerID(userID uint, customerID string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) FulfillEventOnce(ctx context.Context, event *models.BillingWebhookEvent, fulfill func(tx *gorm.DB) error) (bool, error) {
	fulfilled := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "provider"},
				{Name: "provider_event_id"},
			},
			DoNothing: true,
		}).Create(event).Error; err != nil {
			return err
		}

		// Lock the event row so a concurrent delivery of the same event
		// waits here and then sees processed_at set.
		var stored models.BillingWebhookEvent
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
			First(&stored).Error; err != nil {
			return err
		}
		if stored.ProcessedAt != nil {
			return nil
		}

		if err := fulfill(tx); err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(&models.BillingWebhookEvent{}).Where("id = ?", stored.ID).Updates(map[string]interface{}{
			"processed_at":     &now,
			"processing_error": "",
		}).Error; err != nil {
			return err
		}
		fulfilled = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return fulfilled, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

// MarkWebhookFailed stores the failure text but leaves processed_at null so
// a provider redelivery retries fulfillment.
func (r *gormRepository) MarkWebhookFailed(id uint, processingError string) error {
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).
		Update("processing_error", processingError).Error
}

func (r *gormRepository) GetUserByStripeCustomerID(customerID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("stripe_customer_id = ?", customerID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) SetStripeCustomerID(userID uint, customerID string) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).
		Update("stripe_customer_id", customerID).Error
}
