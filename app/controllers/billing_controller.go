package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/quicktoolshq/quicktools/internal/pkg/billing"
	"github.com/quicktoolshq/quicktools/internal/pkg/entitlements"
)

type checkoutRequest struct {
	Pack string `json:"pack"`
}

// HandleListPacks returns the purchasable credit packs.
func HandleListPacks(c *fiber.Ctx) error {
	packs := getBilling().Catalog().Packs()

	out := make([]fiber.Map, 0, len(packs))
	for _, pack := range packs {
		out = append(out, fiber.Map{
			"key":              pack.Key,
			"name":             pack.Name,
			"price_cents":      pack.PriceCents,
			"credits":          pack.Credits,
			"unlocks_api":      pack.UnlocksAPI,
			"price_per_credit": pack.PerCredit(),
		})
	}
	return c.JSON(fiber.Map{"packs": out})
}

// HandleCreateCheckout starts a Stripe checkout session for a credit pack.
func HandleCreateCheckout(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	svc := getBilling()
	if _, err := svc.Catalog().PackByKey(req.Pack); err != nil {
		return badRequest(c, "unknown credit pack: "+req.Pack)
	}

	ctx, cancel := context.WithTimeout(c.Context(), 20*time.Second)
	defer cancel()

	session, err := svc.CreateCheckoutSession(ctx, user, req.Pack)
	if err != nil {
		log.Errorf("checkout session creation failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "billing_unavailable", "message": "Could not start the checkout, please retry"})
	}

	return c.JSON(fiber.Map{"checkout_url": session.URL, "session_id": session.ID})
}

// HandleStripeWebhook processes Stripe event deliveries. Each provider event
// is fulfilled exactly once; redeliveries of processed events are acknowledged
// without granting again, and failed fulfillments stay open for retry.
func HandleStripeWebhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	event, err := billing.ParseStripeEvent(payload, signature)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	svc := getBilling()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	input := billing.WebhookEventInput{
		Provider:        "stripe",
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(payload),
		SignatureValid:  true,
	}

	switch string(event.Type) {
	case billing.EventCheckoutCompleted:
		purchase, err := billing.ExtractPurchase(event, svc.Catalog())
		if err != nil {
			log.Errorf("stripe event %s has an unusable payload: %v", event.ID, err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
		}

		granted, err := svc.ProcessPurchase(ctx, input, purchase)
		if err != nil {
			// Leave the event unprocessed so Stripe redelivers it.
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "fulfillment_failed"})
		}
		return c.JSON(fiber.Map{"ok": true, "granted": granted})

	case billing.EventSubscriptionDeleted:
		// Left over from the subscription era; some customers still have
		// legacy subscriptions that emit this on cancellation. Credits are
		// prepaid, so there is nothing to revoke; record and move on.
		if err := svc.AcknowledgeEvent(ctx, input); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
		}
		return c.JSON(fiber.Map{"ok": true, "ignored": true})

	default:
		if err := svc.AcknowledgeEvent(ctx, input); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
		}
		return c.JSON(fiber.Map{"ok": true, "ignored": true})
	}
}

// HandleGetSupportTier reports the caller's support tier from lifetime purchases.
func HandleGetSupportTier(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	tier := entitlements.SupportTier(user.CreditsPurchasedTotal)
	return c.JSON(fiber.Map{
		"support_tier":            tier,
		"response_time":           entitlements.ResponseTime(tier),
		"credits_purchased_total": user.CreditsPurchasedTotal,
	})
}
