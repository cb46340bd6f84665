package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/quicktoolshq/quicktools/app/models"
)

// fakeRepository mirrors the transactional semantics of the GORM repository:
// FulfillEventOnce serializes deliveries of one event (the row lock) and a
// fulfill or mark failure rolls back both the event row and any grants made
// inside the delivery.
type fakeRepository struct {
	mu       sync.Mutex
	events   map[string]*models.BillingWebhookEvent
	nextID   uint
	users    map[string]*models.User
	granter  *fakeGranter
	failMark bool
}

func newFakeRepository(granter *fakeGranter) *fakeRepository {
	return &fakeRepository{
		events:  make(map[string]*models.BillingWebhookEvent),
		users:   make(map[string]*models.User),
		granter: granter,
	}
}

func (r *fakeRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := event.Provider + "/" + event.ProviderEventID
	if stored, ok := r.events[key]; ok {
		return false, stored, nil
	}
	r.nextID++
	event.ID = r.nextID
	r.events[key] = event
	return true, event, nil
}

func (r *fakeRepository) FulfillEventOnce(_ context.Context, event *models.BillingWebhookEvent, fulfill func(tx *gorm.DB) error) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := event.Provider + "/" + event.ProviderEventID
	stored, existed := r.events[key]
	if existed && stored.ProcessedAt != nil {
		return false, nil
	}
	if !existed {
		r.nextID++
		event.ID = r.nextID
		r.events[key] = event
		stored = event
	}

	checkpoint := len(r.granter.grants)
	rollback := func() {
		r.granter.grants = r.granter.grants[:checkpoint]
		if !existed {
			delete(r.events, key)
		}
	}

	if err := fulfill(nil); err != nil {
		rollback()
		return false, err
	}
	if r.failMark {
		rollback()
		return false, errors.New("marking the event processed failed")
	}

	now := time.Now()
	stored.ProcessedAt = &now
	stored.ProcessingError = ""
	return true, nil
}

func (r *fakeRepository) MarkWebhookProcessed(id uint, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return errors.New("event not found")
}

func (r *fakeRepository) MarkWebhookFailed(id uint, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.ID == id {
			e.ProcessingError = processingError
			return nil
		}
	}
	return errors.New("event not found")
}

func (r *fakeRepository) GetUserByStripeCustomerID(customerID string) (*models.User, error) {
	u, ok := r.users[customerID]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

func (r *fakeRepository) SetStripeCustomerID(userID uint, customerID string) error {
	return nil
}

type fakeGranter struct {
	grants []grantCall
	err    error
}

type grantCall struct {
	userID     uint
	amount     int
	unlocksAPI bool
}

func (g *fakeGranter) Grant(_ context.Context, _ *gorm.DB, userID uint, amount int, unlocksAPI bool) error {
	if g.err != nil {
		return g.err
	}
	g.grants = append(g.grants, grantCall{userID: userID, amount: amount, unlocksAPI: unlocksAPI})
	return nil
}

func testCatalog() *PackCatalog {
	return newCatalog([]Pack{
		{Key: "starter", Credits: 100, PriceCents: 900, StripePriceID: "price_starter"},
		{Key: "pro", Credits: 1200, PriceCents: 5900, UnlocksAPI: true, StripePriceID: "price_pro"},
	})
}

func newTestService() (*Service, *fakeRepository, *fakeGranter) {
	granter := &fakeGranter{}
	repo := newFakeRepository(granter)
	return NewService(repo, granter, testCatalog()), repo, granter
}

func purchaseEvent(id string) (WebhookEventInput, PurchaseCompleted) {
	in := WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: id,
		EventType:       EventCheckoutCompleted,
		PayloadJSON:     `{"id":"` + id + `"}`,
		SignatureValid:  true,
	}
	purchase := PurchaseCompleted{
		ProviderCustomerID: "cus_123",
		PackKey:            "pro",
		Credits:            1200,
		UnlocksAPI:         true,
	}
	return in, purchase
}

func TestProcessPurchaseGrantsOnce(t *testing.T) {
	svc, repo, granter := newTestService()
	repo.users["cus_123"] = &models.User{ID: 7}

	in, purchase := purchaseEvent("evt_1")
	granted, err := svc.ProcessPurchase(context.Background(), in, purchase)
	require.NoError(t, err)
	assert.True(t, granted)

	require.Len(t, granter.grants, 1)
	assert.Equal(t, uint(7), granter.grants[0].userID)
	assert.Equal(t, 1200, granter.grants[0].amount)
	assert.True(t, granter.grants[0].unlocksAPI)
}

func TestProcessPurchaseDuplicateDeliveryGrantsOnce(t *testing.T) {
	svc, repo, granter := newTestService()
	repo.users["cus_123"] = &models.User{ID: 7}

	in, purchase := purchaseEvent("evt_dup")
	granted, err := svc.ProcessPurchase(context.Background(), in, purchase)
	require.NoError(t, err)
	assert.True(t, granted)

	// Redelivery of the same provider event.
	granted, err = svc.ProcessPurchase(context.Background(), in, purchase)
	require.NoError(t, err)
	assert.False(t, granted)

	assert.Len(t, granter.grants, 1)
}

func TestProcessPurchaseConcurrentDeliveriesGrantOnce(t *testing.T) {
	svc, repo, granter := newTestService()
	repo.users["cus_123"] = &models.User{ID: 7}

	in, purchase := purchaseEvent("evt_race")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ProcessPurchase(context.Background(), in, purchase)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, granter.grants, 1)
}

func TestProcessPurchaseMarkFailureRollsBackGrant(t *testing.T) {
	svc, repo, granter := newTestService()
	repo.users["cus_123"] = &models.User{ID: 7}

	// The processed-mark fails inside the fulfillment transaction, so the
	// grant must roll back with it and the redelivery grants exactly once.
	in, purchase := purchaseEvent("evt_mark_fail")
	repo.failMark = true
	_, err := svc.ProcessPurchase(context.Background(), in, purchase)
	require.Error(t, err)
	assert.Empty(t, granter.grants)

	repo.failMark = false
	granted, err := svc.ProcessPurchase(context.Background(), in, purchase)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Len(t, granter.grants, 1)
}

func TestProcessPurchaseRetriesAfterFailedFulfillment(t *testing.T) {
	svc, repo, granter := newTestService()
	repo.users["cus_123"] = &models.User{ID: 7}
	granter.err = errors.New("db down")

	in, purchase := purchaseEvent("evt_retry")
	_, err := svc.ProcessPurchase(context.Background(), in, purchase)
	require.Error(t, err)
	assert.Empty(t, granter.grants)

	// The event stays unprocessed, so the provider's redelivery fulfills it.
	granter.err = nil
	granted, err := svc.ProcessPurchase(context.Background(), in, purchase)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Len(t, granter.grants, 1)
}

func TestProcessPurchaseUnknownCustomer(t *testing.T) {
	svc, _, granter := newTestService()

	in, purchase := purchaseEvent("evt_unknown")
	_, err := svc.ProcessPurchase(context.Background(), in, purchase)
	require.Error(t, err)
	assert.Empty(t, granter.grants)
}

func TestProcessPurchaseValidatesPayload(t *testing.T) {
	svc, repo, granter := newTestService()
	repo.users["cus_123"] = &models.User{ID: 7}

	in, purchase := purchaseEvent("evt_bad")
	purchase.Credits = 0
	_, err := svc.ProcessPurchase(context.Background(), in, purchase)
	require.Error(t, err)
	assert.Empty(t, granter.grants)

	in, purchase = purchaseEvent("evt_bad2")
	purchase.ProviderCustomerID = ""
	_, err = svc.ProcessPurchase(context.Background(), in, purchase)
	require.Error(t, err)
	assert.Empty(t, granter.grants)
}

func TestAcknowledgeEventIsIdempotent(t *testing.T) {
	svc, _, granter := newTestService()

	in := WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: "evt_sub_cancel",
		EventType:       EventSubscriptionDeleted,
		PayloadJSON:     `{}`,
		SignatureValid:  true,
	}
	require.NoError(t, svc.AcknowledgeEvent(context.Background(), in))
	require.NoError(t, svc.AcknowledgeEvent(context.Background(), in))
	assert.Empty(t, granter.grants)
}

func TestRecordWebhookEventHashFallback(t *testing.T) {
	svc, _, _ := newTestService()

	in := WebhookEventInput{
		Provider:    models.BillingProviderStripe,
		EventType:   EventCheckoutCompleted,
		PayloadJSON: `{"object":"event"}`,
	}
	created, stored, err := svc.RecordWebhookEvent(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Contains(t, stored.ProviderEventID, "hash:")

	// Same payload without an event id dedupes via the hash.
	created, _, err = svc.RecordWebhookEvent(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, created)
}
