package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
	"selfiebooth/internal/infrastructure/repositories/memory"
)

func newTenantService(t *testing.T) (*TenantService, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	svc := NewTenantService(memory.NewMemoryTenantRepository(), pub, []string{"admin", "demo"}, true, zaptest.NewLogger(t).Sugar())
	return svc, pub
}

func TestTenantService_ResolveSlug(t *testing.T) {
	svc, _ := newTenantService(t)

	tests := []struct {
		name     string
		host     string
		path     string
		wantSlug string
		wantDemo bool
	}{
		{"subdomain", "foo.example.com", "/", "foo", false},
		{"subdomain with port", "foo.example.com:8080", "/bar", "foo", false},
		{"www uses path", "www.example.com", "/mueller", "mueller", false},
		{"localhost uses path", "localhost:3000", "/mueller/admin", "mueller", false},
		{"ip uses path", "127.0.0.1:8080", "/mueller", "mueller", false},
		{"reserved admin", "localhost", "/admin", DemoSlug, true},
		{"reserved demo", "localhost", "/demo", DemoSlug, true},
		{"admin subdomain", "admin.example.com", "/", DemoSlug, true},
		{"empty path", "localhost", "/", DemoSlug, true},
		{"upper case host", "FOO.example.com", "/", "foo", false},
		{"upper case path", "localhost", "/Mueller", "mueller", false},
		{"upper case reserved", "localhost", "/Admin", DemoSlug, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slug, demo := svc.ResolveSlug(tt.host, tt.path)
			assert.Equal(t, tt.wantSlug, slug)
			assert.Equal(t, tt.wantDemo, demo)
		})
	}
}

func TestTenantService_ResolveSynthesizesAndKeeps(t *testing.T) {
	svc, _ := newTenantService(t)
	ctx := context.Background()

	tenant, err := svc.Resolve(ctx, "localhost", "/mueller")
	require.NoError(t, err)
	assert.Equal(t, "Fahrschule Mueller", tenant.Name)
	assert.Equal(t, "info@mueller.de", tenant.Email)
	assert.Equal(t, "www.mueller.de", tenant.Settings.TextOverlay.Text)
	assert.Len(t, tenant.Settings.Frames, 3)
	assert.True(t, svc.IsSubscriptionActive(tenant))
	assert.Equal(t, 365, svc.DaysUntilExpiry(tenant))

	_, err = svc.repo.Update(ctx, tenant.ID, func(t *domain.Tenant) error {
		t.Settings.PrimaryColor = "#123456"
		return nil
	})
	require.NoError(t, err)

	again, err := svc.Resolve(ctx, "mueller.example.com", "/")
	require.NoError(t, err)
	assert.Equal(t, "#123456", again.Settings.PrimaryColor)
}

func TestTenantService_DemoTenantIsTrial(t *testing.T) {
	svc, _ := newTenantService(t)

	demo, err := svc.Resolve(context.Background(), "localhost", "/")
	require.NoError(t, err)
	assert.Equal(t, domain.TenantID("demo"), demo.ID)
	assert.Equal(t, "Demo Fahrschule", demo.Name)
	assert.Equal(t, domain.SubscriptionTrial, demo.Subscription.Status)
	assert.False(t, svc.IsSubscriptionActive(demo))
	assert.Equal(t, 7, svc.DaysUntilExpiry(demo))
}

func TestTenantService_DemoDisabled(t *testing.T) {
	svc := NewTenantService(memory.NewMemoryTenantRepository(), nil, nil, false, zaptest.NewLogger(t).Sugar())
	_, err := svc.Resolve(context.Background(), "localhost", "/")
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestTenantService_SlugCaseAndHost(t *testing.T) {
	svc, _ := newTenantService(t)
	ctx := context.Background()

	lower, err := svc.BySlug(ctx, "mueller")
	require.NoError(t, err)
	upper, err := svc.BySlug(ctx, "Mueller")
	require.NoError(t, err)
	assert.Equal(t, lower.ID, upper.ID)

	byHost, err := svc.ResolveHost(ctx, "mueller.booth.test:443")
	require.NoError(t, err)
	assert.Equal(t, lower.ID, byHost.ID)

	demo, err := svc.ResolveHost(ctx, "localhost")
	require.NoError(t, err)
	assert.Equal(t, domain.TenantID(DemoSlug), demo.ID)
}

func TestTenantService_InvalidSlug(t *testing.T) {
	svc, _ := newTenantService(t)
	_, err := svc.Resolve(context.Background(), "localhost", "/Not_A_Slug")
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestTenantService_UpdateSubscription(t *testing.T) {
	svc, pub := newTenantService(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	demo, err := svc.Demo(ctx)
	require.NoError(t, err)

	updated, err := svc.UpdateSubscription(ctx, demo.ID, domain.PlanMonthly)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, updated.Subscription.Status)
	assert.Equal(t, now.Add(30*24*time.Hour), updated.Subscription.CurrentPeriodEnd)
	assert.True(t, svc.IsSubscriptionActive(updated))
	assert.Equal(t, 30, svc.DaysUntilExpiry(updated))

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ports.EventSubscriptionUpdated, events[0].Type)

	_, err = svc.UpdateSubscription(ctx, demo.ID, "weekly")
	assert.ErrorIs(t, err, domain.ErrUnknownPlan)
}

func TestTenantService_DaysUntilExpiry(t *testing.T) {
	svc, _ := newTenantService(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	assert.Equal(t, 0, svc.DaysUntilExpiry(&domain.Tenant{}))
	assert.Equal(t, 1, svc.DaysUntilExpiry(&domain.Tenant{Subscription: domain.Subscription{CurrentPeriodEnd: now.Add(time.Hour)}}))
	assert.Equal(t, 0, svc.DaysUntilExpiry(&domain.Tenant{Subscription: domain.Subscription{CurrentPeriodEnd: now.Add(-time.Hour)}}))
}

func TestTenantURL(t *testing.T) {
	assert.Equal(t, "https://booth.example.com/mueller",
		TenantURL("https://booth.example.com/", &domain.Tenant{Slug: "mueller"}))
}
