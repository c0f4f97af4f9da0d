package ports

import (
	"context"
	"time"

	"selfiebooth/internal/core/domain"
)

// TenantRepository stores synthesized tenants so admin edits outlive a request.
type TenantRepository interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	GetByID(ctx context.Context, id domain.TenantID) (*domain.Tenant, error)
	// Create fails with domain.ErrTenantExists when the slug is taken.
	Create(ctx context.Context, tenant *domain.Tenant) error
	// Update applies fn atomically to the stored tenant and returns the result.
	Update(ctx context.Context, id domain.TenantID, fn func(*domain.Tenant) error) (*domain.Tenant, error)
	// List returns every stored tenant ordered by id.
	List(ctx context.Context) ([]*domain.Tenant, error)
}

type UserRepository interface {
	List(ctx context.Context) ([]*domain.User, error)
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	// FindByLogin matches username or email, case-sensitively.
	FindByLogin(ctx context.Context, identifier string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id domain.UserID) error
}

// SessionStore is the per-client key/value store that stands in for the
// browser's local storage. Missing keys yield domain.ErrSessionNotFound.
type SessionStore interface {
	Get(ctx context.Context, clientID, key string) ([]byte, error)
	Set(ctx context.Context, clientID, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, clientID, key string) error
}
