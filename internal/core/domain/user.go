package domain

import "time"

type UserID string

// User is a platform account. PasswordHash never leaves the user store.
type User struct {
	ID           UserID     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         RoleName   `json:"role"`
	IsActive     bool       `json:"isActive"`
	LastLogin    *time.Time `json:"lastLogin"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Public returns the user without credentials.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// UserPatch changes only the non-nil fields. A non-nil Password is hashed
// by the auth service.
type UserPatch struct {
	Username *string   `json:"username,omitempty"`
	Email    *string   `json:"email,omitempty"`
	Password *string   `json:"password,omitempty"`
	Role     *RoleName `json:"role,omitempty"`
	IsActive *bool     `json:"isActive,omitempty"`
}

// UserSession is the blob stored under SessionKeyCurrentUser.
type UserSession struct {
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TenantAdmin is the owner of one tenant. It is unrelated to User.
type TenantAdmin struct {
	ID         string   `json:"id"`
	Email      string   `json:"email"`
	TenantID   TenantID `json:"tenantId"`
	TenantName string   `json:"tenantName"`
	Role       string   `json:"role"`
}

// AdminSession is the blob stored under AdminSessionKey(tenant).
type AdminSession struct {
	Admin     TenantAdmin `json:"admin"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

const SessionKeyCurrentUser = "currentUser"

// AdminSessionKey is the per-tenant session key of the tenant admin.
func AdminSessionKey(id TenantID) string {
	return "admin_session_" + string(id)
}
