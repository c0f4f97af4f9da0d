package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
	"selfiebooth/internal/infrastructure/repositories/memory"
)

func hash(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

var adminTenant = &domain.Tenant{ID: "tenant_mueller", Slug: "mueller", Name: "Fahrschule Mueller", Email: "info@mueller.de"}

func newAdminAuth(t *testing.T, defaultHash string, overrides map[string]string) (*AdminAuthService, ports.SessionStore) {
	t.Helper()
	sessions := memory.NewMemorySessionStore()
	return NewAdminAuthService(sessions, 8*time.Hour, defaultHash, overrides, zaptest.NewLogger(t).Sugar()), sessions
}

func TestAdminAuth_Login(t *testing.T) {
	svc, sessions := newAdminAuth(t, hash(t, "s3cret!"), nil)
	ctx := context.Background()

	res := svc.AdminLogin(ctx, "c1", adminTenant, "info@mueller.de", "s3cret!")
	require.True(t, res.Success)
	assert.Equal(t, adminTenant.ID, res.Admin.TenantID)
	assert.Equal(t, "Fahrschule Mueller", res.Admin.TenantName)

	blob, err := sessions.Get(ctx, "c1", "admin_session_tenant_mueller")
	require.NoError(t, err)
	var stored domain.AdminSession
	require.NoError(t, json.Unmarshal(blob, &stored))
	assert.WithinDuration(t, time.Now().Add(8*time.Hour), stored.ExpiresAt, time.Minute)

	admin, err := svc.CurrentAdmin(ctx, "c1", adminTenant)
	require.NoError(t, err)
	assert.Equal(t, "info@mueller.de", admin.Email)
}

func TestAdminAuth_RejectsWrongEmailOrPassword(t *testing.T) {
	svc, _ := newAdminAuth(t, hash(t, "s3cret!"), nil)
	ctx := context.Background()

	res := svc.AdminLogin(ctx, "c1", adminTenant, "demo@fahrschule.de", "s3cret!")
	assert.ErrorIs(t, res.Err, domain.ErrInvalidCredentials)

	res = svc.AdminLogin(ctx, "c1", adminTenant, "info@mueller.de", "admin123")
	assert.ErrorIs(t, res.Err, domain.ErrInvalidCredentials)

	assert.False(t, svc.Session(ctx, "c1", adminTenant).Authenticated())
}

func TestAdminAuth_DisabledWithoutHash(t *testing.T) {
	svc, _ := newAdminAuth(t, "", nil)

	assert.False(t, svc.Enabled(adminTenant))
	res := svc.AdminLogin(context.Background(), "c1", adminTenant, "info@mueller.de", "admin123")
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, domain.ErrAdminLoginDisabled)
}

func TestAdminAuth_TenantOverride(t *testing.T) {
	svc, _ := newAdminAuth(t, "", map[string]string{"tenant_mueller": hash(t, "mueller-pw")})
	ctx := context.Background()

	assert.True(t, svc.Enabled(adminTenant))
	assert.False(t, svc.Enabled(&domain.Tenant{ID: "demo"}))
	assert.True(t, svc.AdminLogin(ctx, "c1", adminTenant, "info@mueller.de", "mueller-pw").Success)
}

func TestAdminAuth_ExpiredSessionIsRemoved(t *testing.T) {
	svc, sessions := newAdminAuth(t, hash(t, "pw1234"), nil)
	ctx := context.Background()
	key := domain.AdminSessionKey(adminTenant.ID)

	blob, _ := json.Marshal(domain.AdminSession{
		Admin:     domain.TenantAdmin{ID: "tenant_mueller", TenantID: adminTenant.ID},
		ExpiresAt: time.Now().Add(-time.Second),
	})
	require.NoError(t, sessions.Set(ctx, "c1", key, blob, 0))

	_, err := svc.CurrentAdmin(ctx, "c1", adminTenant)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	_, err = sessions.Get(ctx, "c1", key)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestAdminAuth_CorruptSessionIsRemoved(t *testing.T) {
	svc, sessions := newAdminAuth(t, hash(t, "pw1234"), nil)
	ctx := context.Background()
	key := domain.AdminSessionKey(adminTenant.ID)

	require.NoError(t, sessions.Set(ctx, "c1", key, []byte("garbage"), 0))
	assert.False(t, svc.Session(ctx, "c1", adminTenant).Authenticated())
	_, err := sessions.Get(ctx, "c1", key)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestAdminAuth_SessionIsTenantScoped(t *testing.T) {
	svc, _ := newAdminAuth(t, hash(t, "pw1234"), nil)
	ctx := context.Background()
	require.True(t, svc.AdminLogin(ctx, "c1", adminTenant, "info@mueller.de", "pw1234").Success)

	session := svc.Session(ctx, "c1", adminTenant)
	assert.True(t, session.Authenticated())
	assert.Equal(t, ports.PrincipalTenantAdmin, session.Kind())
	assert.True(t, session.HasPermission(domain.PermSettingsEdit))
	assert.True(t, session.HasPermission(domain.PermSubscriptionEdit))
	assert.False(t, session.HasPermission(domain.PermUsersManage))
	assert.False(t, session.HasRole(domain.RoleSuperAdmin))

	other := &domain.Tenant{ID: "tenant_schmidt", Email: "info@schmidt.de"}
	assert.False(t, svc.Session(ctx, "c1", other).Authenticated())

	require.NoError(t, svc.AdminLogout(ctx, "c1", adminTenant))
	assert.False(t, svc.Session(ctx, "c1", adminTenant).Authenticated())
}
