package middleware

import (
	"github.com/gin-gonic/gin"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
	"selfiebooth/internal/core/services"
	apperrors "selfiebooth/pkg/errors"
	"selfiebooth/pkg/i18n"
)

// SessionSource loads the auth session a guard consults.
type SessionSource func(c *gin.Context) ports.AuthSession

// UserSessions reads the platform user session of the calling client.
func UserSessions(users *services.UserAuthService) SessionSource {
	return func(c *gin.Context) ports.AuthSession {
		return users.Session(c.Request.Context(), ClientID(c))
	}
}

// AdminSessions reads the tenant admin session of the resolved tenant.
func AdminSessions(admins *services.AdminAuthService) SessionSource {
	return func(c *gin.Context) ports.AuthSession {
		return admins.Session(c.Request.Context(), ClientID(c), Tenant(c))
	}
}

// Session returns the session stored by a guard, or nil.
func Session(c *gin.Context) ports.AuthSession {
	if v, ok := c.Get(KeySession); ok {
		if s, ok := v.(ports.AuthSession); ok {
			return s
		}
	}
	return nil
}

func authenticate(c *gin.Context, source SessionSource) (ports.AuthSession, bool) {
	session := source(c)
	if session == nil || !session.Authenticated() {
		c.Error(apperrors.NewUnauthorizedError("login required").Localized(i18n.AuthLoginRequired))
		c.Abort()
		return nil, false
	}
	c.Set(KeySession, session)
	return session, true
}

// RequireAuthenticated lets only signed in principals of source pass.
func RequireAuthenticated(source SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := authenticate(c, source); ok {
			c.Next()
		}
	}
}

// RequireTenantAdmin gates the tenant admin area of the resolved tenant.
func RequireTenantAdmin(admins *services.AdminAuthService) gin.HandlerFunc {
	return RequireAuthenticated(AdminSessions(admins))
}

func RequirePermission(source SessionSource, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := authenticate(c, source)
		if !ok {
			return
		}
		if !session.HasPermission(permission) {
			c.Error(apperrors.NewMissingPermissionError(permission).
				Localized(i18n.AccessMissingPermission, permission))
			c.Abort()
			return
		}
		c.Next()
	}
}

func RequireAnyPermission(source SessionSource, permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := authenticate(c, source)
		if !ok {
			return
		}
		for _, p := range permissions {
			if session.HasPermission(p) {
				c.Next()
				return
			}
		}
		c.Error(apperrors.NewMissingAnyPermissionError(permissions).
			Localized(i18n.AccessMissingPermissions, joinQuoted(permissions)))
		c.Abort()
	}
}

// RequireRole needs the exact role, not a role ranked above it.
func RequireRole(source SessionSource, role domain.RoleName) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := authenticate(c, source)
		if !ok {
			return
		}
		if !session.HasRole(role) {
			c.Error(apperrors.NewMissingRoleError(string(role)).
				Localized(i18n.AccessMissingRole, string(role)))
			c.Abort()
			return
		}
		c.Next()
	}
}

func joinQuoted(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += `"` + s + `"`
	}
	return out
}
