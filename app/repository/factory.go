package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetUserRepository returns the user repository instance
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

// GetUsageRecordRepository returns the usage record repository instance
func (f *Factory) GetUsageRecordRepository() UsageRecordRepository {
	return f.GetRepositories().Usage
}

// GetAPIKeyRepository returns the API key repository instance
func (f *Factory) GetAPIKeyRepository() APIKeyRepository {
	return f.GetRepositories().APIKey
}

// NewFactoryWithRepositories builds a factory over preconstructed
// repositories. Handler tests use it to run against in-memory stand-ins.
func NewFactoryWithRepositories(repos *Repositories) *Factory {
	f := &Factory{repos: repos}
	f.once.Do(func() {})
	return f
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// SetGlobalFactory swaps the global factory. Production wiring goes through
// InitializeFactory; this exists for tests.
func SetGlobalFactory(f *Factory) {
	globalFactory = f
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
