package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/services"
	"selfiebooth/internal/infrastructure/middleware"
	"selfiebooth/pkg/i18n"
)

// PlanOffer is a plan as the pricing cards show it.
type PlanOffer struct {
	domain.Plan
	Label string `json:"label"`
	Note  string `json:"note,omitempty"`
}

func planOffers(catalog *i18n.Catalog, tag language.Tag) []PlanOffer {
	return []PlanOffer{
		{Plan: domain.Plans[domain.PlanMonthly], Label: catalog.T(tag, i18n.PlanMonthly)},
		{Plan: domain.Plans[domain.PlanYearly], Label: catalog.T(tag, i18n.PlanYearly), Note: catalog.T(tag, i18n.PlanYearlyNote)},
	}
}

// PlatformHandler serves the non-tenant pages: get started, the platform
// admin overview and user management.
type PlatformHandler struct {
	users   *services.UserAuthService
	tenants *services.TenantService
	catalog *i18n.Catalog
}

func NewPlatformHandler(users *services.UserAuthService, tenants *services.TenantService, catalog *i18n.Catalog) *PlatformHandler {
	return &PlatformHandler{users: users, tenants: tenants, catalog: catalog}
}

func (h *PlatformHandler) SetupRoutes(router *gin.Engine) {
	sessions := middleware.UserSessions(h.users)

	api := router.Group("/api/v1")
	{
		api.GET("/get-started", h.GetStarted)
		api.GET("/plans", h.Plans)
		api.GET("/admin", middleware.RequireAnyPermission(sessions, domain.PermSettingsView, domain.PermAnalyticsView), h.Overview)

		users := api.Group("/users")
		{
			users.GET("", middleware.RequirePermission(sessions, domain.PermUsersView), h.ListUsers)
			users.POST("", middleware.RequirePermission(sessions, domain.PermUsersManage), h.CreateUser)
			users.PATCH("/:id", middleware.RequirePermission(sessions, domain.PermUsersManage), h.UpdateUser)
			users.DELETE("/:id", middleware.RequirePermission(sessions, domain.PermUsersManage), h.DeleteUser)
		}
	}
}

// GetStarted is the public landing: plans, savings and the demo booth.
func (h *PlatformHandler) GetStarted(c *gin.Context) {
	demo, err := h.tenants.Demo(c.Request.Context())
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plans":         planOffers(h.catalog, middleware.Language(c)),
		"yearlySavings": domain.YearlySavings(),
		"demo": gin.H{
			"slug":     demo.Slug,
			"name":     demo.Name,
			"settings": demo.Settings,
		},
	})
}

func (h *PlatformHandler) Plans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": planOffers(h.catalog, middleware.Language(c))})
}

// Overview lists the roles and what they may do.
func (h *PlatformHandler) Overview(c *gin.Context) {
	roles := make([]domain.Role, 0, len(domain.RoleHierarchy))
	for _, name := range domain.RoleHierarchy {
		roles = append(roles, domain.Roles[name])
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

func (h *PlatformHandler) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *PlatformHandler) CreateUser(c *gin.Context) {
	var req services.NewUser
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, invalidInput("invalid user"))
		return
	}
	user, err := h.users.CreateUser(c.Request.Context(), req)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (h *PlatformHandler) UpdateUser(c *gin.Context) {
	var patch domain.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		abortWith(c, invalidInput("invalid user patch"))
		return
	}
	user, err := h.users.UpdateUser(c.Request.Context(), middleware.ClientID(c), domain.UserID(c.Param("id")), patch)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *PlatformHandler) DeleteUser(c *gin.Context) {
	if err := h.users.DeleteUser(c.Request.Context(), middleware.ClientID(c), domain.UserID(c.Param("id"))); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
