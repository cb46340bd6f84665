package controllers

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/quicktoolshq/quicktools/app/models"
	"github.com/quicktoolshq/quicktools/app/repository"
	"github.com/quicktoolshq/quicktools/internal/pkg/artifacts"
	"github.com/quicktoolshq/quicktools/internal/pkg/ledger"
	"github.com/quicktoolshq/quicktools/internal/pkg/usercontext"
)

// memoryUserRepository keeps accounts in process memory so handler tests can
// run without a database. The mutex stands in for row locking.
type memoryUserRepository struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.User

	// duplicateOnCreate simulates losing a unique-index race on signup.
	duplicateOnCreate bool
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{nextID: 1, users: make(map[uint]*models.User)}
}

func (r *memoryUserRepository) Create(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.duplicateOnCreate {
		return gorm.ErrDuplicatedKey
	}
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	user.ID = r.nextID
	r.nextID++
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *memoryUserRepository) GetByID(id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *memoryUserRepository) GetByEmail(email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryUserRepository) GetByAPIKeyHash(string) (*models.User, *models.APIKey, error) {
	return nil, nil, gorm.ErrRecordNotFound
}

func (r *memoryUserRepository) Update(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *memoryUserRepository) Count() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

// memoryLedgerRepository applies ledger mutations against the same account
// map the user repository serves, under the same lock.
type memoryLedgerRepository struct {
	users *memoryUserRepository
}

func (r *memoryLedgerRepository) MutateAccount(_ context.Context, userID uint, mutate func(user *models.User) error) error {
	r.users.mu.Lock()
	defer r.users.mu.Unlock()
	user, ok := r.users.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *user
	if err := mutate(&copied); err != nil {
		return err
	}
	*user = copied
	return nil
}

func (r *memoryLedgerRepository) GetAccount(_ context.Context, userID uint) (*models.User, error) {
	return r.users.GetByID(userID)
}

type memoryUsageRecordRepository struct {
	mu      sync.Mutex
	records []models.UsageRecord
}

func (r *memoryUsageRecordRepository) Create(record *models.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record.ID = uint(len(r.records) + 1)
	r.records = append(r.records, *record)
	return nil
}

func (r *memoryUsageRecordRepository) CountByUserID(userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rec := range r.records {
		if rec.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *memoryUsageRecordRepository) CountByUserIDAndTool(userID uint, tool string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rec := range r.records {
		if rec.UserID == userID && rec.Tool == tool {
			n++
		}
	}
	return n, nil
}

func (r *memoryUsageRecordRepository) GetRecentByUserID(userID uint, limit int) ([]models.UsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.UsageRecord
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		if r.records[i].UserID == userID {
			out = append(out, r.records[i])
		}
	}
	return out, nil
}

func (r *memoryUsageRecordRepository) GetToolBreakdown(userID uint) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64)
	for _, rec := range r.records {
		if rec.UserID == userID {
			out[rec.Tool]++
		}
	}
	return out, nil
}

func (r *memoryUsageRecordRepository) GetDailyCounts(userID uint, startDate, endDate time.Time) ([]models.DailyUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byDay := make(map[string]int)
	for _, rec := range r.records {
		if rec.UserID != userID {
			continue
		}
		if rec.CreatedAt.Before(startDate) || rec.CreatedAt.After(endDate) {
			continue
		}
		byDay[rec.CreatedAt.Format("2006-01-02")]++
	}
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)
	out := make([]models.DailyUsage, 0, len(days))
	for _, day := range days {
		out = append(out, models.DailyUsage{Date: day, Count: byDay[day]})
	}
	return out, nil
}

type memoryAPIKeyRepository struct {
	mu     sync.Mutex
	nextID uint
	keys   map[uint]*models.APIKey
}

func newMemoryAPIKeyRepository() *memoryAPIKeyRepository {
	return &memoryAPIKeyRepository{nextID: 1, keys: make(map[uint]*models.APIKey)}
}

func (r *memoryAPIKeyRepository) Create(key *models.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key.ID = r.nextID
	r.nextID++
	copied := *key
	r.keys[key.ID] = &copied
	return nil
}

func (r *memoryAPIKeyRepository) GetByID(userID, id uint) (*models.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[id]
	if !ok || key.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *key
	return &copied, nil
}

func (r *memoryAPIKeyRepository) ListByUserID(userID uint) ([]models.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.APIKey
	for _, key := range r.keys {
		if key.UserID == userID {
			out = append(out, *key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryAPIKeyRepository) Delete(userID, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[id]
	if !ok || key.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	delete(r.keys, id)
	return nil
}

func (r *memoryAPIKeyRepository) TouchLastUsed(id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key, ok := r.keys[id]; ok {
		key.LastUsedAt = &at
	}
	return nil
}

// handlerFixture wires the handlers to in-memory collaborators.
type handlerFixture struct {
	users *memoryUserRepository
	usage *memoryUsageRecordRepository
	keys  *memoryAPIKeyRepository
	store *artifacts.Store
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	f := &handlerFixture{
		users: newMemoryUserRepository(),
		usage: &memoryUsageRecordRepository{},
		keys:  newMemoryAPIKeyRepository(),
		store: artifacts.NewStore(artifacts.NewMemoryMetaStore(), t.TempDir()),
	}

	repository.SetGlobalFactory(repository.NewFactoryWithRepositories(&repository.Repositories{
		User:   f.users,
		Usage:  f.usage,
		APIKey: f.keys,
	}))

	servicesOnce.Do(func() {})
	ledgerSvc = ledger.NewService(&memoryLedgerRepository{users: f.users})
	artifactStore = f.store

	return f
}

func (f *handlerFixture) seedUser(t *testing.T, email string, credits int, apiAccess bool) *models.User {
	t.Helper()
	user := &models.User{
		Name:              "Test User",
		Email:             email,
		Password:          "irrelevant-hash",
		Status:            models.STATUS_ACTIVE,
		CreditsBalance:    credits,
		APIAccessUnlocked: apiAccess,
	}
	if err := f.users.Create(user); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	return user
}

// newAuthedApp builds a Fiber app whose requests run as the given user.
func newAuthedApp(userID uint, register func(app *fiber.App)) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     userID,
			IsLoggedIn: true,
		})
		return c.Next()
	})
	register(app)
	return app
}
