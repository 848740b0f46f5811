package rbac

// Built-in permission codenames.
const (
	PermRoleManage            = "role.manage"
	PermRoleCreate            = "role.create"
	PermPermissionView        = "permission.view"
	PermUserManageMemberships = "user.manage_memberships"
	PermUserManage            = "user.manage"
	PermAuditView             = "audit.view"
)

// BuiltinPermissions is the catalog seeded by EnsureBuiltins.
var BuiltinPermissions = []Permission{
	{Codename: PermRoleManage, Name: "Manage roles", Description: "Create, update and delete roles in the active company"},
	{Codename: PermRoleCreate, Name: "Create roles", Description: "Create roles in the active company"},
	{Codename: PermPermissionView, Name: "View permissions", Description: "Read the permission catalog"},
	{Codename: PermUserManageMemberships, Name: "Manage memberships", Description: "Attach users and roles to the active company"},
	{Codename: PermUserManage, Name: "Manage users", Description: "Update and delete other users of the active company"},
	{Codename: PermAuditView, Name: "View audit log", Description: "Read the audit log of the active company"},
}
