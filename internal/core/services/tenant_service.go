package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
	"selfiebooth/pkg/utils"
	"selfiebooth/pkg/validation"
)

const DemoSlug = "demo"

var templateCreatedAt = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// TenantService resolves the tenant of a request and manages its
// subscription. Tenants are synthesized from a template on first sight and
// kept in the repository afterwards.
type TenantService struct {
	repo      ports.TenantRepository
	publisher ports.EventPublisher
	reserved  map[string]bool
	demo      bool
	title     cases.Caser
	now       func() time.Time
	logger    *zap.SugaredLogger
}

func NewTenantService(
	repo ports.TenantRepository,
	publisher ports.EventPublisher,
	reservedSlugs []string,
	demoEnabled bool,
	logger *zap.SugaredLogger,
) *TenantService {
	reserved := make(map[string]bool, len(reservedSlugs))
	for _, s := range reservedSlugs {
		reserved[strings.ToLower(s)] = true
	}
	return &TenantService{
		repo:      repo,
		publisher: publisher,
		reserved:  reserved,
		demo:      demoEnabled,
		title:     cases.Title(language.German),
		now:       time.Now,
		logger:    logger,
	}
}

// ResolveSlug extracts the tenant slug from a request. A dotted hostname not
// starting with "www." names the tenant in its first label; otherwise the
// first path segment does. Reserved or missing slugs select the demo tenant.
func (s *TenantService) ResolveSlug(host, path string) (slug string, demo bool) {
	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}
	hostname = strings.ToLower(hostname)

	if strings.Contains(hostname, ".") && !strings.HasPrefix(hostname, "www.") && net.ParseIP(hostname) == nil {
		slug = strings.SplitN(hostname, ".", 2)[0]
	} else {
		for _, seg := range strings.Split(path, "/") {
			if seg != "" {
				slug = strings.ToLower(seg)
				break
			}
		}
	}

	if slug == "" || s.reserved[slug] || slug == DemoSlug {
		return DemoSlug, true
	}
	return slug, false
}

// ResolveHost returns the tenant named by the subdomain of host. Hosts
// without a tenant subdomain select the demo tenant.
func (s *TenantService) ResolveHost(ctx context.Context, host string) (*domain.Tenant, error) {
	return s.Resolve(ctx, host, "")
}

// Resolve returns the tenant for host and path.
func (s *TenantService) Resolve(ctx context.Context, host, path string) (*domain.Tenant, error) {
	slug, demo := s.ResolveSlug(host, path)
	if demo {
		return s.Demo(ctx)
	}
	return s.BySlug(ctx, slug)
}

// BySlug loads or synthesizes the tenant named by slug. Slugs are case
// insensitive.
func (s *TenantService) BySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	slug = strings.ToLower(slug)
	if slug == DemoSlug || s.reserved[slug] {
		return s.Demo(ctx)
	}
	if err := validation.ValidateSlug(slug); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrTenantNotFound, slug)
	}
	return s.loadOrCreate(ctx, slug, s.tenantTemplate)
}

// Demo returns the demo tenant.
func (s *TenantService) Demo(ctx context.Context) (*domain.Tenant, error) {
	if !s.demo {
		return nil, fmt.Errorf("%w: %s", domain.ErrTenantNotFound, DemoSlug)
	}
	return s.loadOrCreate(ctx, DemoSlug, func(string) *domain.Tenant { return s.demoTemplate() })
}

func (s *TenantService) GetByID(ctx context.Context, id domain.TenantID) (*domain.Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *TenantService) loadOrCreate(ctx context.Context, slug string, template func(string) *domain.Tenant) (*domain.Tenant, error) {
	tenant, err := s.repo.GetBySlug(ctx, slug)
	if err == nil {
		return tenant, nil
	}
	if !errors.Is(err, domain.ErrTenantNotFound) {
		return nil, fmt.Errorf("failed to load tenant %s: %w", slug, err)
	}

	tenant = template(slug)
	if err := s.repo.Create(ctx, tenant); err != nil {
		// Another request created it first.
		if errors.Is(err, domain.ErrTenantExists) {
			return s.repo.GetBySlug(ctx, slug)
		}
		return nil, fmt.Errorf("failed to store tenant %s: %w", slug, err)
	}

	s.logger.Infow("Tenant synthesized from template", "tenant_id", tenant.ID, "slug", slug)
	return tenant, nil
}

// DisplayName is the tenant name derived from a slug.
func (s *TenantService) DisplayName(slug string) string {
	return "Fahrschule " + s.title.String(slug)
}

func (s *TenantService) tenantTemplate(slug string) *domain.Tenant {
	now := s.now()
	return &domain.Tenant{
		ID:      domain.TenantID("tenant_" + slug),
		Slug:    slug,
		Name:    s.DisplayName(slug),
		Email:   fmt.Sprintf("info@%s.de", slug),
		Phone:   "+49 123 456789",
		Address: "Musterstraße 123, 12345 Musterstadt",
		Subscription: domain.Subscription{
			Plan:             domain.PlanYearly,
			Status:           domain.SubscriptionActive,
			CurrentPeriodEnd: now.Add(domain.Plans[domain.PlanYearly].Period),
			CreatedAt:        templateCreatedAt,
		},
		Settings: domain.Settings{
			Version:        1,
			PrimaryColor:   "#1E40AF",
			SecondaryColor: "#F59E0B",
			Logo: domain.LogoSettings{
				URL:      "https://images.unsplash.com/photo-1544717297-fa95b6ee9643?w=200&h=80&fit=crop",
				Position: domain.LogoTopCenter,
				Size:     domain.LogoMedium,
			},
			TextOverlay: domain.TextOverlaySettings{
				Enabled:     true,
				Text:        fmt.Sprintf("www.%s.de", slug),
				Position:    domain.TextBottom,
				FontSize:    domain.FontMedium,
				ColorScheme: domain.SchemePrimary,
			},
			Frames: []domain.Frame{
				{ID: 0, Name: "Kein Rahmen", IsDefault: true, IsActive: true},
				{ID: 1, Name: "Führerschein Classic", URL: "https://images.unsplash.com/photo-1581091226825-a6a2a5aee158?w=400&h=600&fit=crop", IsActive: true},
				{ID: 2, Name: "Moderne Fahrschule", URL: "https://images.unsplash.com/photo-1449824913935-59a10b8d2000?w=400&h=600&fit=crop", IsActive: true},
			},
		},
		IsActive:  true,
		CreatedAt: templateCreatedAt,
	}
}

func (s *TenantService) demoTemplate() *domain.Tenant {
	now := s.now()
	return &domain.Tenant{
		ID:      domain.TenantID(DemoSlug),
		Slug:    DemoSlug,
		Name:    "Demo Fahrschule",
		Email:   "demo@fahrschule.de",
		Phone:   "+49 123 456789",
		Address: "Demo Straße 1, 12345 Demo Stadt",
		Subscription: domain.Subscription{
			Plan:             domain.PlanMonthly,
			Status:           domain.SubscriptionTrial,
			CurrentPeriodEnd: now.Add(7 * 24 * time.Hour),
			CreatedAt:        now,
		},
		Settings: domain.Settings{
			Version:        1,
			PrimaryColor:   "#8B0000",
			SecondaryColor: "#FEA400",
			Logo: domain.LogoSettings{
				URL:      "https://www.falkendrohne.de/selfie/leander.png?text=LOGO",
				Position: domain.LogoTopCenter,
				Size:     domain.LogoMedium,
			},
			TextOverlay: domain.TextOverlaySettings{
				Enabled:     false,
				Text:        "www.demo-fahrschule.de",
				Position:    domain.TextBottom,
				FontSize:    domain.FontMedium,
				ColorScheme: domain.SchemePrimary,
			},
			Frames: []domain.Frame{
				{ID: 0, Name: "Kein Rahmen", IsDefault: true, IsActive: true},
				{ID: 1, Name: "Klassisch", URL: "https://www.falkendrohne.de/selfie/rahmen3.png?w=400&h=600&fit=crop&crop=center", IsActive: true},
				{ID: 2, Name: "Modern", URL: "https://images.unsplash.com/photo-1513475382585-d06e58bcb0e0?w=400&h=600&fit=crop&crop=center", IsActive: true},
			},
		},
		IsActive:  true,
		CreatedAt: now,
	}
}

// TenantURL is the public booth address of a tenant.
func TenantURL(origin string, tenant *domain.Tenant) string {
	return strings.TrimRight(origin, "/") + "/" + tenant.Slug
}

// UpdateSubscription switches the plan and starts a new paid period.
func (s *TenantService) UpdateSubscription(ctx context.Context, id domain.TenantID, planID domain.PlanID) (*domain.Tenant, error) {
	plan, ok := domain.Plans[planID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPlan, planID)
	}

	now := s.now()
	tenant, err := s.repo.Update(ctx, id, func(t *domain.Tenant) error {
		t.Subscription.Plan = plan.ID
		t.Subscription.Status = domain.SubscriptionActive
		t.Subscription.CurrentPeriodEnd = now.Add(plan.Period)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}

	s.logger.Infow("Subscription updated", "tenant_id", id, "plan", plan.ID,
		"period_end", tenant.Subscription.CurrentPeriodEnd)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, ports.Event{Type: ports.EventSubscriptionUpdated, TenantID: id}); err != nil {
			s.logger.Warnw("Failed to publish subscription event", "tenant_id", id, "error", err)
		}
	}
	return tenant, nil
}

// IsSubscriptionActive reports whether the booth may be used right now.
func (s *TenantService) IsSubscriptionActive(tenant *domain.Tenant) bool {
	return tenant != nil && tenant.Subscription.IsActive(s.now())
}

// DaysUntilExpiry is the number of started days left in the period.
func (s *TenantService) DaysUntilExpiry(tenant *domain.Tenant) int {
	if tenant == nil || tenant.Subscription.CurrentPeriodEnd.IsZero() {
		return 0
	}
	return utils.CeilDays(s.now(), tenant.Subscription.CurrentPeriodEnd)
}
