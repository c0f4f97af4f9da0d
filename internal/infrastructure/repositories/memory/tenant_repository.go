package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
)

type MemoryTenantRepository struct {
	tenants map[domain.TenantID]*domain.Tenant
	bySlug  map[string]domain.TenantID
	mu      sync.RWMutex
}

func NewMemoryTenantRepository() ports.TenantRepository {
	return &MemoryTenantRepository{
		tenants: make(map[domain.TenantID]*domain.Tenant),
		bySlug:  make(map[string]domain.TenantID),
	}
}

// copyTenant keeps callers from mutating stored state.
func copyTenant(t *domain.Tenant) *domain.Tenant {
	out := *t
	out.Settings = t.Settings.Clone()
	return &out
}

func (r *MemoryTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySlug[tenant.Slug]; exists {
		return fmt.Errorf("%w: %s", domain.ErrTenantExists, tenant.Slug)
	}
	if _, exists := r.tenants[tenant.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrTenantExists, tenant.ID)
	}

	r.tenants[tenant.ID] = copyTenant(tenant)
	r.bySlug[tenant.Slug] = tenant.ID
	return nil
}

func (r *MemoryTenantRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.bySlug[slug]
	if !exists {
		return nil, domain.ErrTenantNotFound
	}
	return copyTenant(r.tenants[id]), nil
}

func (r *MemoryTenantRepository) GetByID(ctx context.Context, id domain.TenantID) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tenant, exists := r.tenants[id]
	if !exists {
		return nil, domain.ErrTenantNotFound
	}
	return copyTenant(tenant), nil
}

func (r *MemoryTenantRepository) Update(ctx context.Context, id domain.TenantID, fn func(*domain.Tenant) error) (*domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.tenants[id]
	if !exists {
		return nil, domain.ErrTenantNotFound
	}

	next := copyTenant(current)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Slug = current.Slug

	r.tenants[id] = next
	return copyTenant(next), nil
}

func (r *MemoryTenantRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		out = append(out, copyTenant(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
