package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/quicktoolshq/quicktools/app/models"
	"github.com/quicktoolshq/quicktools/internal/pkg/env"
)

// Stripe event types the webhook endpoint reacts to.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// SetupStripe configures the global Stripe client key.
func SetupStripe() {
	stripe.Key = env.GetEnv("STRIPE_SECRET_KEY", "")
}

// EnsureStripeCustomer returns the user's Stripe customer reference, creating
// it lazily on first purchase.
func (s *Service) EnsureStripeCustomer(ctx context.Context, user *models.User) (string, error) {
	_ = ctx
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
	}
	params.AddMetadata("user_id", strconv.FormatUint(uint64(user.ID), 10))
	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe customer creation failed: %w", err)
	}

	if err := s.repo.SetStripeCustomerID(user.ID, cust.ID); err != nil {
		return "", err
	}
	user.StripeCustomerID = &cust.ID
	return cust.ID, nil
}

// CreateCheckoutSession starts a one-time-payment checkout for a credit pack.
// The pack key travels in the session metadata so fulfillment does not need a
// price lookup.
func (s *Service) CreateCheckoutSession(ctx context.Context, user *models.User, packKey string) (*stripe.CheckoutSession, error) {
	pack, err := s.catalog.PackByKey(packKey)
	if err != nil {
		return nil, err
	}

	customerID, err := s.EnsureStripeCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	frontendURL := env.GetEnv("FRONTEND_URL", "http://localhost:4000")
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(pack.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(frontendURL + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(frontendURL + "/pricing"),
	}
	params.AddMetadata("pack", pack.Key)
	params.AddMetadata("user_id", strconv.FormatUint(uint64(user.ID), 10))

	return checkoutsession.New(params)
}

// ParseStripeEvent verifies the webhook signature and decodes the event.
// Events with invalid signatures are rejected before any state is touched.
func ParseStripeEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")
	return webhook.ConstructEvent(payload, signatureHeader, secret)
}

// ExtractPurchase maps a verified checkout.session.completed event to the
// normalized purchase shape.
func ExtractPurchase(event stripe.Event, catalog *PackCatalog) (PurchaseCompleted, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return PurchaseCompleted{}, fmt.Errorf("malformed checkout session payload: %w", err)
	}

	if session.Customer == nil || session.Customer.ID == "" {
		return PurchaseCompleted{}, fmt.Errorf("checkout session %s has no customer", session.ID)
	}

	pack, err := catalog.PackByKey(session.Metadata["pack"])
	if err != nil {
		return PurchaseCompleted{}, err
	}

	return PurchaseCompleted{
		ProviderCustomerID: session.Customer.ID,
		PackKey:            pack.Key,
		Credits:            pack.Credits,
		UnlocksAPI:         pack.UnlocksAPI,
	}, nil
}
