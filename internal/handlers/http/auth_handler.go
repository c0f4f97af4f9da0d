package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/services"
	"selfiebooth/internal/infrastructure/middleware"
	apperrors "selfiebooth/pkg/errors"
	"selfiebooth/pkg/i18n"
)

// LoginRecorder counts login attempts per store.
type LoginRecorder interface {
	RecordLogin(store string, success bool)
}

// AuthHandler serves both login forms. The platform user login and the
// tenant admin login share nothing but the client cookie.
type AuthHandler struct {
	users      *services.UserAuthService
	admins     *services.AdminAuthService
	tenants    *services.TenantService
	loginLimit gin.HandlerFunc
	recorder   LoginRecorder
}

func NewAuthHandler(
	users *services.UserAuthService,
	admins *services.AdminAuthService,
	tenants *services.TenantService,
	loginLimit gin.HandlerFunc,
	recorder LoginRecorder,
) *AuthHandler {
	if loginLimit == nil {
		loginLimit = func(c *gin.Context) { c.Next() }
	}
	return &AuthHandler{
		users:      users,
		admins:     admins,
		tenants:    tenants,
		loginLimit: loginLimit,
		recorder:   recorder,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/login", h.loginLimit, h.Login)
		api.POST("/logout", h.Logout)
		api.GET("/me", h.Me)
	}

	for _, prefix := range tenantPrefixes {
		admin := router.Group(prefix+"/admin", middleware.TenantMiddleware(h.tenants))
		admin.POST("/login", h.loginLimit, h.AdminLogin)
		admin.POST("/logout", h.AdminLogout)
		admin.GET("/me", middleware.RequireTenantAdmin(h.admins), h.AdminMe)
	}
}

type LoginRequest struct {
	// Username or email.
	Identifier string `json:"identifier" binding:"required,max=254"`
	Password   string `json:"password" binding:"required,max=128"`
}

type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,max=254"`
	Password string `json:"password" binding:"required,max=128"`
}

func (h *AuthHandler) record(store string, success bool) {
	if h.recorder != nil {
		h.recorder.RecordLogin(store, success)
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, apperrors.NewInvalidInputError("identifier and password are required"))
		return
	}

	result := h.users.Login(c.Request.Context(), middleware.ClientID(c), strings.TrimSpace(req.Identifier), req.Password)
	h.record("user", result.Success)
	if !result.Success {
		abortWith(c, apperrors.WrapError(result.Err, apperrors.ErrCodeUnauthorized, "invalid credentials", http.StatusUnauthorized).
			Localized(i18n.AuthInvalidCredentials))
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.users.Logout(c.Request.Context(), middleware.ClientID(c)); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.CurrentUser(c.Request.Context(), middleware.ClientID(c))
	if err != nil {
		abortWith(c, err)
		return
	}

	role := domain.Roles[user.Role]
	c.JSON(http.StatusOK, gin.H{
		"user":        user,
		"role":        role.DisplayName,
		"permissions": role.Permissions,
	})
}

func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, apperrors.NewInvalidInputError("email and password are required"))
		return
	}

	tenant := middleware.Tenant(c)
	result := h.admins.AdminLogin(c.Request.Context(), middleware.ClientID(c), tenant, strings.TrimSpace(req.Email), req.Password)
	h.record("tenant_admin", result.Success)
	if !result.Success {
		if errors.Is(result.Err, domain.ErrInvalidCredentials) {
			abortWith(c, apperrors.WrapError(result.Err, apperrors.ErrCodeUnauthorized, "invalid credentials", http.StatusUnauthorized).
				Localized(i18n.AuthAdminInvalidCredential))
			return
		}
		abortWith(c, result.Err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AuthHandler) AdminLogout(c *gin.Context) {
	if err := h.admins.AdminLogout(c.Request.Context(), middleware.ClientID(c), middleware.Tenant(c)); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) AdminMe(c *gin.Context) {
	admin, err := h.admins.CurrentAdmin(c.Request.Context(), middleware.ClientID(c), middleware.Tenant(c))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"admin":       admin,
		"permissions": domain.TenantAdminPermissions,
	})
}
