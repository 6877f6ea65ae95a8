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

// GetYearbookRepository returns the yearbook repository instance
func (f *Factory) GetYearbookRepository() YearbookRepository {
	return f.GetRepositories().Yearbook
}

// GetClaimRepository returns the claim repository instance
func (f *Factory) GetClaimRepository() ClaimRepository {
	return f.GetRepositories().Claim
}

// GetModerationRepository returns the moderation repository instance
func (f *Factory) GetModerationRepository() ModerationRepository {
	return f.GetRepositories().Moderation
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

// ResetFactoryForTest clears the global factory so tests can install a
// fresh database. Not for production use.
func ResetFactoryForTest(db *gorm.DB) {
	globalFactory = &Factory{db: db}
}
