package middleware

import (
	"github.com/gin-gonic/gin"

	"selfiebooth/internal/core/services"
	apperrors "selfiebooth/pkg/errors"
	"selfiebooth/pkg/i18n"
	"selfiebooth/pkg/logger"
)

// TenantMiddleware resolves the tenant from the :slug route parameter, or
// from the subdomain of the request host on routes without one.
func TenantMiddleware(tenants *services.TenantService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var err error
		tenant := Tenant(c)
		if tenant == nil {
			slug := c.Param("slug")
			if slug != "" {
				tenant, err = tenants.BySlug(ctx, slug)
			} else {
				slug, _ = tenants.ResolveSlug(c.Request.Host, "")
				tenant, err = tenants.ResolveHost(ctx, c.Request.Host)
			}
			if err != nil {
				c.Error(apperrors.NewTenantNotFoundError(slug).Localized(i18n.TenantNotFound))
				c.Abort()
				return
			}
		}

		c.Set(KeyTenant, tenant)
		c.Request = c.Request.WithContext(logger.WithTenantID(ctx, string(tenant.ID)))
		c.Next()
	}
}

// RequireActiveSubscription blocks the booth of a tenant whose
// subscription lapsed and names the tenant contact instead.
func RequireActiveSubscription(tenants *services.TenantService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := Tenant(c)
		if tenant == nil {
			c.Error(apperrors.NewTenantNotFoundError("").Localized(i18n.TenantNotFound))
			c.Abort()
			return
		}
		if tenant.ID != services.DemoSlug && !tenants.IsSubscriptionActive(tenant) {
			c.Error(apperrors.NewSubscriptionInactiveError(tenant.Name, tenant.Email, tenant.Phone).
				Localized(i18n.SubscriptionExpired, tenant.Name, tenant.Email, tenant.Phone))
			c.Abort()
			return
		}
		c.Next()
	}
}
