package domain

type RoleName string

const (
	RoleGuest      RoleName = "guest"
	RoleUser       RoleName = "user"
	RoleModerator  RoleName = "moderator"
	RoleAdmin      RoleName = "admin"
	RoleSuperAdmin RoleName = "super_admin"
)

// Capability strings.
const (
	PermAll              = "*"
	PermCameraUse        = "camera.use"
	PermFrameSelect      = "frame.select"
	PermPhotoSave        = "photo.save"
	PermPhotoShare       = "photo.share"
	PermFramesView       = "frames.view"
	PermFramesAdd        = "frames.add"
	PermFramesEdit       = "frames.edit"
	PermFramesDelete     = "frames.delete"
	PermSettingsView     = "settings.view"
	PermSettingsEdit     = "settings.edit"
	PermUsersView        = "users.view"
	PermUsersManage      = "users.manage"
	PermAnalyticsView    = "analytics.view"
	PermSubscriptionEdit = "subscription.manage"
)

type Role struct {
	Name        RoleName `json:"name"`
	DisplayName string   `json:"displayName"`
	Permissions []string `json:"permissions"`
}

// RoleHierarchy lists roles from least to most privileged.
var RoleHierarchy = []RoleName{RoleGuest, RoleUser, RoleModerator, RoleAdmin, RoleSuperAdmin}

var Roles = map[RoleName]Role{
	RoleGuest: {
		Name:        RoleGuest,
		DisplayName: "Gast",
		Permissions: []string{PermCameraUse, PermFrameSelect},
	},
	RoleUser: {
		Name:        RoleUser,
		DisplayName: "Benutzer",
		Permissions: []string{PermCameraUse, PermFrameSelect, PermPhotoSave, PermPhotoShare},
	},
	RoleModerator: {
		Name:        RoleModerator,
		DisplayName: "Moderator",
		Permissions: []string{PermCameraUse, PermFrameSelect, PermPhotoSave, PermPhotoShare, PermFramesView, PermSettingsView},
	},
	RoleAdmin: {
		Name:        RoleAdmin,
		DisplayName: "Administrator",
		Permissions: []string{
			PermCameraUse, PermFrameSelect, PermPhotoSave, PermPhotoShare,
			PermFramesView, PermFramesAdd, PermFramesEdit, PermFramesDelete,
			PermSettingsView, PermSettingsEdit, PermUsersView, PermUsersManage, PermAnalyticsView,
		},
	},
	RoleSuperAdmin: {
		Name:        RoleSuperAdmin,
		DisplayName: "Super Administrator",
		Permissions: []string{PermAll},
	},
}

// TenantAdminPermissions are held by a tenant admin for its own tenant only.
var TenantAdminPermissions = []string{
	PermSettingsView, PermSettingsEdit,
	PermFramesView, PermFramesAdd, PermFramesEdit, PermFramesDelete,
	PermAnalyticsView, PermSubscriptionEdit,
}

// HasPermission is an exact match against the role's list, or "*".
func (r Role) HasPermission(permission string) bool {
	for _, p := range r.Permissions {
		if p == PermAll || p == permission {
			return true
		}
	}
	return false
}

// RoleRank is the position in RoleHierarchy; unknown roles rank -1, below guest.
func RoleRank(name RoleName) int {
	for i, r := range RoleHierarchy {
		if r == name {
			return i
		}
	}
	return -1
}

// IsValidRole reports whether name is a known role.
func IsValidRole(name RoleName) bool {
	_, ok := Roles[name]
	return ok
}
