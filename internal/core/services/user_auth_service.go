package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
	"selfiebooth/pkg/validation"
)

// LoginResult mirrors what the login form needs. Err is always the same
// generic error on failure.
type LoginResult struct {
	Success bool         `json:"success"`
	User    *domain.User `json:"user,omitempty"`
	Err     error        `json:"-"`
}

// NewUser is the input of CreateUser.
type NewUser struct {
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     domain.RoleName `json:"role"`
}

// UserAuthService is the role/permission based account store of the
// platform pages. Sessions are kept per client in the session store.
type UserAuthService struct {
	users      ports.UserRepository
	sessions   ports.SessionStore
	sessionTTL time.Duration
	hashCost   int
	now        func() time.Time
	logger     *zap.SugaredLogger
}

func NewUserAuthService(
	users ports.UserRepository,
	sessions ports.SessionStore,
	sessionTTL time.Duration,
	logger *zap.SugaredLogger,
) *UserAuthService {
	return &UserAuthService{
		users:      users,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		hashCost:   bcrypt.DefaultCost,
		now:        time.Now,
		logger:     logger,
	}
}

type demoUser struct {
	id        domain.UserID
	username  string
	email     string
	password  string
	role      domain.RoleName
	active    bool
	lastLogin time.Time
	createdAt time.Time
}

var demoUsers = []demoUser{
	{"1", "admin", "admin@example.com", "admin123", domain.RoleAdmin, true,
		time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	{"2", "moderator", "mod@example.com", "mod123", domain.RoleModerator, true,
		time.Date(2024, 1, 14, 15, 45, 0, 0, time.UTC), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	{"3", "user1", "user1@example.com", "user123", domain.RoleUser, true,
		time.Date(2024, 1, 13, 9, 20, 0, 0, time.UTC), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
	{"4", "user2", "user2@example.com", "user123", domain.RoleUser, false,
		time.Date(2024, 1, 10, 14, 15, 0, 0, time.UTC), time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)},
}

// SeedDemoUsers stores the demo accounts. Existing accounts are left alone.
func (s *UserAuthService) SeedDemoUsers(ctx context.Context) error {
	for _, d := range demoUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(d.password), s.hashCost)
		if err != nil {
			return fmt.Errorf("failed to hash demo password: %w", err)
		}
		lastLogin := d.lastLogin
		user := &domain.User{
			ID:           d.id,
			Username:     d.username,
			Email:        d.email,
			PasswordHash: string(hash),
			Role:         d.role,
			IsActive:     d.active,
			LastLogin:    &lastLogin,
			CreatedAt:    d.createdAt,
		}
		if err := s.users.Create(ctx, user); err != nil && !errors.Is(err, domain.ErrUserExists) {
			return fmt.Errorf("failed to seed user %s: %w", d.username, err)
		}
	}
	s.logger.Infow("Demo users seeded", "count", len(demoUsers))
	return nil
}

// Login checks the credentials and starts a session for clientID.
func (s *UserAuthService) Login(ctx context.Context, clientID, identifier, password string) LoginResult {
	fail := LoginResult{Err: domain.ErrInvalidCredentials}

	user, err := s.users.FindByLogin(ctx, identifier)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Errorw("User lookup failed", "error", err)
		}
		return fail
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil || !user.IsActive {
		s.logger.Infow("Login rejected", "user_id", user.ID)
		return fail
	}

	now := s.now()
	user.LastLogin = &now
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Warnw("Failed to record last login", "user_id", user.ID, "error", err)
	}

	public := user.Public()
	if err := s.storeSession(ctx, clientID, &public); err != nil {
		s.logger.Errorw("Failed to store user session", "user_id", user.ID, "error", err)
		return fail
	}

	s.logger.Infow("User logged in", "user_id", user.ID, "role", user.Role)
	return LoginResult{Success: true, User: &public}
}

func (s *UserAuthService) storeSession(ctx context.Context, clientID string, user *domain.User) error {
	blob, err := json.Marshal(domain.UserSession{
		User:      user.Public(),
		ExpiresAt: s.now().Add(s.sessionTTL),
	})
	if err != nil {
		return err
	}
	return s.sessions.Set(ctx, clientID, domain.SessionKeyCurrentUser, blob, s.sessionTTL)
}

// Logout forgets the session of clientID.
func (s *UserAuthService) Logout(ctx context.Context, clientID string) error {
	return s.sessions.Delete(ctx, clientID, domain.SessionKeyCurrentUser)
}

// CurrentUser returns the logged in user of clientID as currently stored.
// Expired or unreadable blobs, and blobs of deleted or deactivated accounts,
// are deleted and reported as domain.ErrSessionExpired or
// domain.ErrSessionNotFound.
func (s *UserAuthService) CurrentUser(ctx context.Context, clientID string) (*domain.User, error) {
	blob, err := s.sessions.Get(ctx, clientID, domain.SessionKeyCurrentUser)
	if err != nil {
		return nil, err
	}

	var session domain.UserSession
	if err := json.Unmarshal(blob, &session); err != nil || session.User.ID == "" {
		s.logger.Warnw("Discarding unreadable user session", "client_id", clientID)
		_ = s.sessions.Delete(ctx, clientID, domain.SessionKeyCurrentUser)
		return nil, domain.ErrSessionNotFound
	}
	if !session.ExpiresAt.IsZero() && !s.now().Before(session.ExpiresAt) {
		_ = s.sessions.Delete(ctx, clientID, domain.SessionKeyCurrentUser)
		return nil, domain.ErrSessionExpired
	}

	// The blob only names the account; role and status come from the store
	// so deletions and demotions apply to every open session.
	user, err := s.users.GetByID(ctx, session.User.ID)
	if errors.Is(err, domain.ErrUserNotFound) || (err == nil && !user.IsActive) {
		s.logger.Infow("Ending session of removed or inactive user", "client_id", clientID, "user_id", session.User.ID)
		_ = s.sessions.Delete(ctx, clientID, domain.SessionKeyCurrentUser)
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	public := user.Public()
	return &public, nil
}

// Session returns the guard view of clientID. It is never nil.
func (s *UserAuthService) Session(ctx context.Context, clientID string) ports.AuthSession {
	user, err := s.CurrentUser(ctx, clientID)
	if err != nil {
		return userSession{}
	}
	return userSession{user: user}
}

// HasPermission reports whether user holds permission. A nil user holds nothing.
func HasPermission(user *domain.User, permission string) bool {
	if user == nil {
		return false
	}
	role, ok := domain.Roles[user.Role]
	return ok && role.HasPermission(permission)
}

// HasAnyPermission reports whether user holds at least one of permissions.
func HasAnyPermission(user *domain.User, permissions ...string) bool {
	for _, p := range permissions {
		if HasPermission(user, p) {
			return true
		}
	}
	return false
}

func HasRole(user *domain.User, role domain.RoleName) bool {
	return user != nil && user.Role == role
}

// IsAtLeastRole compares ranks in the role hierarchy.
func IsAtLeastRole(user *domain.User, role domain.RoleName) bool {
	if user == nil {
		return false
	}
	return domain.RoleRank(user.Role) >= domain.RoleRank(role)
}

// userSession adapts a user to ports.AuthSession.
type userSession struct {
	user *domain.User
}

func (u userSession) Authenticated() bool { return u.user != nil }

func (u userSession) PrincipalID() string {
	if u.user == nil {
		return ""
	}
	return string(u.user.ID)
}

func (u userSession) Kind() ports.PrincipalKind { return ports.PrincipalUser }

func (u userSession) HasPermission(permission string) bool {
	return HasPermission(u.user, permission)
}

func (u userSession) HasRole(role domain.RoleName) bool {
	return HasRole(u.user, role)
}

// User returns the session principal, nil when anonymous.
func (u userSession) User() *domain.User { return u.user }

// ListUsers returns all accounts without credentials.
func (s *UserAuthService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.User, 0, len(users))
	for _, u := range users {
		p := u.Public()
		out = append(out, &p)
	}
	return out, nil
}

// CreateUser adds an active account.
func (s *UserAuthService) CreateUser(ctx context.Context, in NewUser) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSettings, err)
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSettings, err)
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSettings, err)
	}
	if in.Role == "" {
		in.Role = domain.RoleUser
	}
	if !domain.IsValidRole(in.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidSettings, in.Role)
	}
	if err := s.ensureUnique(ctx, "", in.Username, in.Email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           domain.UserID(uuid.NewString()),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Infow("User created", "user_id", user.ID, "role", user.Role)
	public := user.Public()
	return &public, nil
}

func (s *UserAuthService) ensureUnique(ctx context.Context, self domain.UserID, username, email string) error {
	users, err := s.users.List(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.ID == self {
			continue
		}
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return domain.ErrUserExists
		}
	}
	return nil
}

// UpdateUser applies patch to the account id on behalf of the user logged in
// on clientID. Callers may not toggle their own active flag; when they edit
// themselves their session blob is refreshed.
func (s *UserAuthService) UpdateUser(ctx context.Context, clientID string, id domain.UserID, patch domain.UserPatch) (*domain.User, error) {
	caller, _ := s.CurrentUser(ctx, clientID)
	self := caller != nil && caller.ID == id

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.IsActive != nil && self && *patch.IsActive != user.IsActive {
		return nil, domain.ErrSelfStatusChange
	}

	var username, email string
	if patch.Username != nil {
		username = strings.TrimSpace(*patch.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSettings, err)
		}
	}
	if patch.Email != nil {
		email = strings.TrimSpace(*patch.Email)
		if err := validation.ValidateEmail(email); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSettings, err)
		}
	}
	if err := s.ensureUnique(ctx, id, username, email); err != nil {
		return nil, err
	}

	if username != "" {
		user.Username = username
	}
	if email != "" {
		user.Email = email
	}
	if patch.Role != nil {
		if !domain.IsValidRole(*patch.Role) {
			return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidSettings, *patch.Role)
		}
		user.Role = *patch.Role
	}
	if patch.IsActive != nil {
		user.IsActive = *patch.IsActive
	}
	if patch.Password != nil {
		if err := validation.ValidatePassword(*patch.Password); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSettings, err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), s.hashCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	public := user.Public()
	if self {
		if err := s.storeSession(ctx, clientID, &public); err != nil {
			s.logger.Warnw("Failed to refresh user session", "user_id", id, "error", err)
		}
	}
	return &public, nil
}

// DeleteUser removes the account id. Deleting oneself logs out.
func (s *UserAuthService) DeleteUser(ctx context.Context, clientID string, id domain.UserID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Infow("User deleted", "user_id", id)

	if caller, err := s.CurrentUser(ctx, clientID); err == nil && caller.ID == id {
		return s.Logout(ctx, clientID)
	}
	return nil
}
