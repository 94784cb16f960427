package permission

import (
	"famledger/internal/membership"
	id "famledger/pkg/domain"
)

// Permission is an atomic capability key. Grants map roles to permissions;
// individuals never hold grants directly.
type Permission string

const (
	PerformDangerAction  Permission = "PERFORM_DANGER_ACTION"
	AccessDangerZone     Permission = "ACCESS_DANGER_ZONE"
	ManageSettings       Permission = "MANAGE_SETTINGS"
	OverrideContribution Permission = "OVERRIDE_CONTRIBUTION"
	ViewAuditLog         Permission = "VIEW_AUDIT_LOG"
	ExportAuditLog       Permission = "EXPORT_AUDIT_LOG"
	ManageMembers        Permission = "MANAGE_MEMBERS"
)

// All enumerates every known permission, in stable order. Used by the seeder
// and by UI gating responses.
var All = []Permission{
	PerformDangerAction,
	AccessDangerZone,
	ManageSettings,
	OverrideContribution,
	ViewAuditLog,
	ExportAuditLog,
	ManageMembers,
}

func (p Permission) String() string { return string(p) }

// DefaultGrants is the administrative seed: the role → permission matrix a
// fresh deployment starts with. Mutated only by the seeding process, never
// by workflow logic.
var DefaultGrants = map[membership.Role][]Permission{
	membership.RolePresident: {
		PerformDangerAction,
		AccessDangerZone,
		ManageSettings,
		OverrideContribution,
		ViewAuditLog,
		ExportAuditLog,
		ManageMembers,
	},
	membership.RoleTreasurer: {
		PerformDangerAction,
		AccessDangerZone,
		OverrideContribution,
		ViewAuditLog,
		ExportAuditLog,
	},
	membership.RoleMember: {
		PerformDangerAction,
		ViewAuditLog,
	},
}

// Actor is the authorization result: who is acting and in what role.
type Actor struct {
	UserID id.UserID
	Role   membership.Role
}
