package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/quicktoolshq/quicktools/app/models"
)

// CreditGranter is the slice of the ledger the billing service needs. The
// grant runs inside the transaction that also marks the webhook event
// processed, so the two commit or roll back together.
type CreditGranter interface {
	Grant(ctx context.Context, tx *gorm.DB, userID uint, amount int, unlocksAPI bool) error
}

// Service turns provider payment events into ledger grants. Duplicate
// delivery of the same provider event results in at most one grant: events
// are persisted with a unique (provider, event id) pair before fulfillment,
// and an already-processed event is acknowledged without touching the ledger.
type Service struct {
	repo    Repository
	ledger  CreditGranter
	catalog *PackCatalog
}

// NewService creates a billing service from injected collaborators.
func NewService(repo Repository, ledger CreditGranter, catalog *PackCatalog) *Service {
	return &Service{repo: repo, ledger: ledger, catalog: catalog}
}

// Catalog exposes the immutable pack table for display purposes.
func (s *Service) Catalog() *PackCatalog {
	return s.catalog
}

// RecordWebhookEvent persists webhook payloads idempotently. The returned
// bool reports whether this delivery is the first one seen.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	event, err := buildWebhookEvent(in)
	if err != nil {
		return false, nil, err
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// buildWebhookEvent normalizes the delivery input into the dedup row shape.
// A delivery without a provider event id dedupes on the payload hash.
func buildWebhookEvent(in WebhookEventInput) (*models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	return &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}, nil
}

// ProcessPurchase handles a purchase-completed event end to end. The dedup
// check, the grant and the processed-mark all run in one transaction with
// the event row locked, so concurrent deliveries of the same event serialize
// and a mark failure rolls the grant back instead of leaving it granted but
// retriable. An event whose earlier delivery failed mid-fulfillment is
// retried on redelivery.
func (s *Service) ProcessPurchase(ctx context.Context, in WebhookEventInput, purchase PurchaseCompleted) (bool, error) {
	event, err := buildWebhookEvent(in)
	if err != nil {
		return false, err
	}

	customerID := strings.TrimSpace(purchase.ProviderCustomerID)
	if customerID == "" {
		return false, errors.New("purchase event missing customer reference")
	}
	if purchase.Credits <= 0 {
		return false, errors.New("purchase event missing credit amount")
	}

	user, err := s.repo.GetUserByStripeCustomerID(customerID)
	if err != nil {
		return false, err
	}

	fulfilled, err := s.repo.FulfillEventOnce(ctx, event, func(tx *gorm.DB) error {
		return s.ledger.Grant(ctx, tx, user.ID, purchase.Credits, purchase.UnlocksAPI)
	})
	if err != nil {
		// The delivery rolled back. Re-record the bare event with the failure
		// text for operators; processed_at stays null so the provider's
		// redelivery retries fulfillment.
		if _, stored, recErr := s.RecordWebhookEvent(ctx, in); recErr == nil && stored.ProcessedAt == nil {
			_ = s.repo.MarkWebhookFailed(stored.ID, err.Error())
		}
		return false, err
	}
	return fulfilled, nil
}

// AcknowledgeEvent records an event type the credit-pack model does not act
// on (legacy subscription lifecycle events) and marks it processed.
func (s *Service) AcknowledgeEvent(ctx context.Context, in WebhookEventInput) error {
	_, stored, err := s.RecordWebhookEvent(ctx, in)
	if err != nil {
		return err
	}
	if stored.ProcessedAt != nil {
		return nil
	}
	return s.repo.MarkWebhookProcessed(stored.ID, "")
}


