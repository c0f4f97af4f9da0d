package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfiebooth/internal/core/domain"
)

func TestMemoryTenantRepository_IsolatesCopies(t *testing.T) {
	repo := NewMemoryTenantRepository()
	ctx := context.Background()

	tenant := &domain.Tenant{ID: "tenant_a", Slug: "a", Settings: domain.Settings{
		Frames: []domain.Frame{{ID: 0, Name: "Kein Rahmen"}},
	}}
	require.NoError(t, repo.Create(ctx, tenant))
	tenant.Settings.Frames[0].Name = "mutated"

	got, err := repo.GetBySlug(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Kein Rahmen", got.Settings.Frames[0].Name)

	got.Settings.Frames[0].Name = "mutated again"
	again, err := repo.GetByID(ctx, "tenant_a")
	require.NoError(t, err)
	assert.Equal(t, "Kein Rahmen", again.Settings.Frames[0].Name)

	assert.ErrorIs(t, repo.Create(ctx, &domain.Tenant{ID: "tenant_b", Slug: "a"}), domain.ErrTenantExists)
}

func TestMemoryTenantRepository_UpdateIsAtomic(t *testing.T) {
	repo := NewMemoryTenantRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Tenant{ID: "tenant_a", Slug: "a"}))

	_, err := repo.Update(ctx, "tenant_a", func(t *domain.Tenant) error {
		t.Name = "half"
		return domain.ErrInvalidSettings
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSettings)

	got, _ := repo.GetByID(ctx, "tenant_a")
	assert.Equal(t, "", got.Name)

	updated, err := repo.Update(ctx, "tenant_a", func(t *domain.Tenant) error {
		t.Name = "Fahrschule A"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Fahrschule A", updated.Name)

	_, err = repo.Update(ctx, "missing", func(*domain.Tenant) error { return nil })
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestMemoryTenantRepository_List(t *testing.T) {
	repo := NewMemoryTenantRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Tenant{ID: "tenant_b", Slug: "b"}))
	require.NoError(t, repo.Create(ctx, &domain.Tenant{ID: "tenant_a", Slug: "a", Name: "Fahrschule A"}))

	tenants, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	assert.Equal(t, domain.TenantID("tenant_a"), tenants[0].ID)

	tenants[0].Name = "mutated"
	again, _ := repo.GetByID(ctx, "tenant_a")
	assert.Equal(t, "Fahrschule A", again.Name)
}

func TestMemoryUserRepository(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, &domain.User{ID: "2", Username: "moderator", Email: "mod@example.com", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, &domain.User{ID: "1", Username: "admin", Email: "admin@example.com", CreatedAt: base}))

	assert.ErrorIs(t, repo.Create(ctx, &domain.User{ID: "3", Username: "admin", Email: "x@example.com"}), domain.ErrUserExists)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, domain.UserID("1"), users[0].ID)

	byEmail, err := repo.FindByLogin(ctx, "mod@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("2"), byEmail.ID)

	_, err = repo.FindByLogin(ctx, "Admin")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	byEmail.Username = "admin"
	assert.ErrorIs(t, repo.Update(ctx, byEmail), domain.ErrUserExists)

	require.NoError(t, repo.Delete(ctx, "2"))
	assert.ErrorIs(t, repo.Delete(ctx, "2"), domain.ErrUserNotFound)
}

func TestMemorySessionStore_Expiry(t *testing.T) {
	store := NewMemorySessionStore().(*MemorySessionStore)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "c1", "k", []byte("v"), time.Minute))
	require.NoError(t, store.Set(ctx, "c1", "forever", []byte("w"), 0))

	got, err := store.Get(ctx, "c1", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "c1", "k")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	got, err = store.Get(ctx, "c1", "forever")
	require.NoError(t, err)
	assert.Equal(t, []byte("w"), got)

	require.NoError(t, store.Delete(ctx, "c1", "forever"))
	_, err = store.Get(ctx, "c1", "forever")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
