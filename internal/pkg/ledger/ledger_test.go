package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quicktoolshq/quicktools/app/models"
)

// memoryRepository serializes mutations with a mutex, mirroring the row-level
// locking the GORM repository gets from SELECT ... FOR UPDATE.
type memoryRepository struct {
	mu       sync.Mutex
	accounts map[uint]*models.User
}

func newMemoryRepository(users ...*models.User) *memoryRepository {
	r := &memoryRepository{accounts: make(map[uint]*models.User)}
	for _, u := range users {
		r.accounts[u.ID] = u
	}
	return r
}

func (r *memoryRepository) MutateAccount(_ context.Context, userID uint, mutate func(user *models.User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[userID]
	if !ok {
		return errors.New("account not found")
	}
	candidate := *stored
	if err := mutate(&candidate); err != nil {
		return err
	}
	r.accounts[userID] = &candidate
	return nil
}

func (r *memoryRepository) GetAccount(_ context.Context, userID uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[userID]
	if !ok {
		return nil, errors.New("account not found")
	}
	copied := *stored
	return &copied, nil
}

func TestGrantIncrementsBalanceAndPurchaseTotal(t *testing.T) {
	repo := newMemoryRepository(&models.User{ID: 1, CreditsBalance: 10})
	svc := NewService(repo)

	require.NoError(t, svc.Grant(context.Background(), 1, 500, false))

	snap, err := svc.GetSnapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 510, snap.CreditsBalance)
	assert.Equal(t, 500, snap.CreditsPurchasedTotal)
	assert.Equal(t, 0, snap.CreditsLifetimeUsed)
	assert.False(t, snap.APIAccessUnlocked)

	user, err := repo.GetAccount(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, user.LastPurchaseAt)
	require.NotNil(t, user.LastPurchaseAmount)
	assert.Equal(t, 500, *user.LastPurchaseAmount)
}

func TestGrantRejectsInvalidAmount(t *testing.T) {
	repo := newMemoryRepository(&models.User{ID: 1})
	svc := NewService(repo)

	assert.ErrorIs(t, svc.Grant(context.Background(), 1, 0, false), ErrInvalidAmount)
	assert.ErrorIs(t, svc.Grant(context.Background(), 1, -5, true), ErrInvalidAmount)

	snap, err := svc.GetSnapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.CreditsPurchasedTotal)
	assert.False(t, snap.APIAccessUnlocked)
}

func TestAPIAccessUnlockIsOneWay(t *testing.T) {
	repo := newMemoryRepository(&models.User{ID: 1})
	svc := NewService(repo)

	require.NoError(t, svc.Grant(context.Background(), 1, 1200, true))
	snap, err := svc.GetSnapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, snap.APIAccessUnlocked)

	// A later grant without the unlock flag must not revert it.
	require.NoError(t, svc.Grant(context.Background(), 1, 100, false))
	snap, err = svc.GetSnapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, snap.APIAccessUnlocked)
	assert.Equal(t, 1300, snap.CreditsPurchasedTotal)
}

func TestSpendDecrementsBalanceAndBumpsLifetimeUsed(t *testing.T) {
	repo := newMemoryRepository(&models.User{ID: 1, CreditsBalance: 10})
	svc := NewService(repo)

	for i := 0; i < 10; i++ {
		require.NoError(t, svc.Spend(context.Background(), 1))
	}

	snap, err := svc.GetSnapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.CreditsBalance)
	assert.Equal(t, 10, snap.CreditsLifetimeUsed)

	// The 11th spend fails and leaves the counters untouched.
	assert.ErrorIs(t, svc.Spend(context.Background(), 1), ErrInsufficientCredits)
	snap, err = svc.GetSnapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.CreditsBalance)
	assert.Equal(t, 10, snap.CreditsLifetimeUsed)
}

func TestSpendNeverDrivesBalanceNegative(t *testing.T) {
	repo := newMemoryRepository(&models.User{ID: 1, CreditsBalance: 0})
	svc := NewService(repo)

	assert.ErrorIs(t, svc.Spend(context.Background(), 1), ErrInsufficientCredits)

	snap, err := svc.GetSnapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.CreditsBalance)
	assert.Equal(t, 0, snap.CreditsLifetimeUsed)
}

func TestConcurrentSpendsWithOneCreditLeft(t *testing.T) {
	repo := newMemoryRepository(&models.User{ID: 1, CreditsBalance: 1})
	svc := NewService(repo)

	const attempts = 16
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Spend(context.Background(), 1)
		}()
	}
	wg.Wait()
	close(errs)

	var successes, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInsufficientCredits):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, insufficient)

	snap, err := svc.GetSnapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.CreditsBalance)
	assert.Equal(t, 1, snap.CreditsLifetimeUsed)
}

func TestFailedMutationRollsBackFully(t *testing.T) {
	repo := newMemoryRepository(&models.User{ID: 1, CreditsBalance: 3, CreditsLifetimeUsed: 7})
	svc := NewService(repo)

	boom := errors.New("storage write failed")
	err := repo.MutateAccount(context.Background(), 1, func(user *models.User) error {
		user.CreditsBalance = 0
		return boom
	})
	assert.ErrorIs(t, err, boom)

	snap, err := svc.GetSnapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.CreditsBalance)
	assert.Equal(t, 7, snap.CreditsLifetimeUsed)
}
