package billing

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// PurchaseCompleted is the provider-agnostic shape of a completed one-time
// payment, as extracted from a checkout.session.completed event.
type PurchaseCompleted struct {
	ProviderCustomerID string
	PackKey            string
	Credits            int
	UnlocksAPI         bool
}
