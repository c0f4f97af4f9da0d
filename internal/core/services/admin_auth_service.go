package services

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
)

// AdminLoginResult is the outcome of a tenant admin login.
type AdminLoginResult struct {
	Success bool                `json:"success"`
	Admin   *domain.TenantAdmin `json:"admin,omitempty"`
	Err     error               `json:"-"`
}

// AdminAuthService guards the tenant admin area. It shares nothing with
// UserAuthService except the session store.
type AdminAuthService struct {
	sessions     ports.SessionStore
	sessionTTL   time.Duration
	defaultHash  string
	tenantHashes map[domain.TenantID]string
	now          func() time.Time
	logger       *zap.SugaredLogger
}

// NewAdminAuthService takes bcrypt hashes; tenantHashes win over
// defaultHash. Without any hash for a tenant its admin login is disabled.
func NewAdminAuthService(
	sessions ports.SessionStore,
	sessionTTL time.Duration,
	defaultHash string,
	tenantHashes map[string]string,
	logger *zap.SugaredLogger,
) *AdminAuthService {
	hashes := make(map[domain.TenantID]string, len(tenantHashes))
	for id, h := range tenantHashes {
		hashes[domain.TenantID(id)] = h
	}
	return &AdminAuthService{
		sessions:     sessions,
		sessionTTL:   sessionTTL,
		defaultHash:  defaultHash,
		tenantHashes: hashes,
		now:          time.Now,
		logger:       logger,
	}
}

func (s *AdminAuthService) hashFor(id domain.TenantID) string {
	if h, ok := s.tenantHashes[id]; ok && h != "" {
		return h
	}
	return s.defaultHash
}

// Enabled reports whether tenant has a configured admin password.
func (s *AdminAuthService) Enabled(tenant *domain.Tenant) bool {
	return tenant != nil && s.hashFor(tenant.ID) != ""
}

// AdminLogin checks email against the tenant contact address and the
// password against the configured hash, then stores an admin session.
func (s *AdminAuthService) AdminLogin(ctx context.Context, clientID string, tenant *domain.Tenant, email, password string) AdminLoginResult {
	if tenant == nil {
		return AdminLoginResult{Err: domain.ErrTenantNotFound}
	}
	hash := s.hashFor(tenant.ID)
	if hash == "" {
		s.logger.Warnw("Admin login attempted without configured password", "tenant_id", tenant.ID)
		return AdminLoginResult{Err: domain.ErrAdminLoginDisabled}
	}

	pwErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if email != tenant.Email || pwErr != nil {
		s.logger.Infow("Admin login rejected", "tenant_id", tenant.ID)
		return AdminLoginResult{Err: domain.ErrInvalidCredentials}
	}

	admin := domain.TenantAdmin{
		ID:         string(tenant.ID),
		Email:      email,
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		Role:       string(domain.RoleAdmin),
	}
	blob, err := json.Marshal(domain.AdminSession{
		Admin:     admin,
		ExpiresAt: s.now().Add(s.sessionTTL),
	})
	if err == nil {
		err = s.sessions.Set(ctx, clientID, domain.AdminSessionKey(tenant.ID), blob, s.sessionTTL)
	}
	if err != nil {
		s.logger.Errorw("Failed to store admin session", "tenant_id", tenant.ID, "error", err)
		return AdminLoginResult{Err: err}
	}

	s.logger.Infow("Tenant admin logged in", "tenant_id", tenant.ID)
	return AdminLoginResult{Success: true, Admin: &admin}
}

// CurrentAdmin loads the admin session of clientID for tenant. Expired and
// unreadable blobs are removed.
func (s *AdminAuthService) CurrentAdmin(ctx context.Context, clientID string, tenant *domain.Tenant) (*domain.TenantAdmin, error) {
	if tenant == nil {
		return nil, domain.ErrTenantNotFound
	}
	key := domain.AdminSessionKey(tenant.ID)

	blob, err := s.sessions.Get(ctx, clientID, key)
	if err != nil {
		return nil, err
	}

	var session domain.AdminSession
	if err := json.Unmarshal(blob, &session); err != nil || session.Admin.TenantID != tenant.ID {
		_ = s.sessions.Delete(ctx, clientID, key)
		return nil, domain.ErrSessionNotFound
	}
	if !s.now().Before(session.ExpiresAt) {
		_ = s.sessions.Delete(ctx, clientID, key)
		return nil, domain.ErrSessionExpired
	}
	return &session.Admin, nil
}

func (s *AdminAuthService) AdminLogout(ctx context.Context, clientID string, tenant *domain.Tenant) error {
	if tenant == nil {
		return nil
	}
	return s.sessions.Delete(ctx, clientID, domain.AdminSessionKey(tenant.ID))
}

// Session returns the guard view of the admin session. It is never nil.
func (s *AdminAuthService) Session(ctx context.Context, clientID string, tenant *domain.Tenant) ports.AuthSession {
	admin, err := s.CurrentAdmin(ctx, clientID, tenant)
	if err != nil {
		return adminSession{}
	}
	return adminSession{admin: admin}
}

// adminSession adapts a tenant admin to ports.AuthSession.
type adminSession struct {
	admin *domain.TenantAdmin
}

func (a adminSession) Authenticated() bool { return a.admin != nil }

func (a adminSession) PrincipalID() string {
	if a.admin == nil {
		return ""
	}
	return a.admin.ID
}

func (a adminSession) Kind() ports.PrincipalKind { return ports.PrincipalTenantAdmin }

func (a adminSession) HasPermission(permission string) bool {
	if a.admin == nil {
		return false
	}
	for _, p := range domain.TenantAdminPermissions {
		if p == permission {
			return true
		}
	}
	return false
}

// HasRole is false for every user role; tenant admins are not users.
func (a adminSession) HasRole(domain.RoleName) bool { return false }

// TenantID is the tenant the admin owns.
func (a adminSession) TenantID() domain.TenantID {
	if a.admin == nil {
		return ""
	}
	return a.admin.TenantID
}
