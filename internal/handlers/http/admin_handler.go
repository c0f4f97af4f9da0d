package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/services"
	"selfiebooth/internal/infrastructure/middleware"
	apperrors "selfiebooth/pkg/errors"
	"selfiebooth/pkg/i18n"
)

// AdminHandler is the tenant admin area: overlay settings, frames and the
// subscription of one tenant.
type AdminHandler struct {
	tenants      *services.TenantService
	settings     *services.SettingsService
	admins       *services.AdminAuthService
	catalog      *i18n.Catalog
	publicOrigin string
}

func NewAdminHandler(
	tenants *services.TenantService,
	settings *services.SettingsService,
	admins *services.AdminAuthService,
	catalog *i18n.Catalog,
	publicOrigin string,
) *AdminHandler {
	return &AdminHandler{
		tenants:      tenants,
		settings:     settings,
		admins:       admins,
		catalog:      catalog,
		publicOrigin: publicOrigin,
	}
}

func (h *AdminHandler) SetupRoutes(router *gin.Engine) {
	sessions := middleware.AdminSessions(h.admins)
	can := func(p string) gin.HandlerFunc { return middleware.RequirePermission(sessions, p) }

	for _, prefix := range tenantPrefixes {
		admin := router.Group(prefix+"/admin",
			middleware.TenantMiddleware(h.tenants),
			middleware.RequireTenantAdmin(h.admins),
		)
		admin.GET("/settings", can(domain.PermSettingsView), h.GetSettings)
		admin.PATCH("/settings", can(domain.PermSettingsEdit), h.PatchSettings)
		admin.POST("/frames", can(domain.PermFramesAdd), h.AddFrame)
		admin.DELETE("/frames/:id", can(domain.PermFramesDelete), h.RemoveFrame)
		admin.PUT("/frames/:id/default", can(domain.PermFramesEdit), h.SetDefaultFrame)
		admin.GET("/subscription", can(domain.PermSubscriptionEdit), h.GetSubscription)
		admin.PUT("/subscription", can(domain.PermSubscriptionEdit), h.UpdateSubscription)
		admin.GET("/url", h.TenantURL)
	}
}

func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context(), middleware.Tenant(c).ID)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"settings":  settings,
		"textStyle": settings.TextStyle(),
	})
}

// PatchSettings saves logo, text overlay, brand colours or the whole frame
// list. Send expectedVersion to reject edits made on a stale page.
func (h *AdminHandler) PatchSettings(c *gin.Context) {
	var patch domain.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abortWith(c, apperrors.NewInvalidInputError("invalid settings patch"))
		return
	}

	settings, err := h.settings.Patch(c.Request.Context(), middleware.Tenant(c).ID, patch)
	if err != nil {
		abortWith(c, err)
		return
	}
	h.saved(c, settings)
}

func (h *AdminHandler) saved(c *gin.Context, settings domain.Settings) {
	c.JSON(http.StatusOK, gin.H{
		"settings": settings,
		"message":  h.catalog.T(middleware.Language(c), i18n.SettingsSaved),
	})
}

type AddFrameRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (h *AdminHandler) AddFrame(c *gin.Context) {
	var req AddFrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, domain.ErrInvalidFrame)
		return
	}

	settings, err := h.settings.AddFrame(c.Request.Context(), middleware.Tenant(c).ID, req.Name, req.URL)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"settings": settings})
}

func (h *AdminHandler) RemoveFrame(c *gin.Context) {
	id, ok := frameIDParam(c)
	if !ok {
		return
	}
	settings, err := h.settings.RemoveFrame(c.Request.Context(), middleware.Tenant(c).ID, id)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *AdminHandler) SetDefaultFrame(c *gin.Context) {
	id, ok := frameIDParam(c)
	if !ok {
		return
	}
	settings, err := h.settings.SetDefaultFrame(c.Request.Context(), middleware.Tenant(c).ID, id)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *AdminHandler) GetSubscription(c *gin.Context) {
	tenant := middleware.Tenant(c)
	c.JSON(http.StatusOK, gin.H{
		"subscription":    tenant.Subscription,
		"active":          h.tenants.IsSubscriptionActive(tenant),
		"daysUntilExpiry": h.tenants.DaysUntilExpiry(tenant),
		"plans":           planOffers(h.catalog, middleware.Language(c)),
	})
}

type UpdateSubscriptionRequest struct {
	Plan domain.PlanID `json:"plan" binding:"required"`
}

func (h *AdminHandler) UpdateSubscription(c *gin.Context) {
	var req UpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, apperrors.NewInvalidInputError("plan is required"))
		return
	}

	tenant, err := h.tenants.UpdateSubscription(c.Request.Context(), middleware.Tenant(c).ID, req.Plan)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subscription":    tenant.Subscription,
		"daysUntilExpiry": h.tenants.DaysUntilExpiry(tenant),
		"message":         h.catalog.T(middleware.Language(c), i18n.SubscriptionChanged),
	})
}

// TenantURL is the address the admin copies to share the booth.
func (h *AdminHandler) TenantURL(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"url": services.TenantURL(h.publicOrigin, middleware.Tenant(c))})
}
