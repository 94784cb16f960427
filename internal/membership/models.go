package membership

import (
	"time"

	id "famledger/pkg/domain"
)

// Role is a member's function within a family. Permissions are granted to
// roles, never to individuals.
type Role string

const (
	RolePresident Role = "PRESIDENT"
	RoleTreasurer Role = "TREASURER"
	RoleMember    Role = "MEMBER"
)

// validRoles is the single source of truth for supported roles.
var validRoles = map[Role]bool{
	RolePresident: true,
	RoleTreasurer: true,
	RoleMember:    true,
}

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return validRoles[r]
}

func (r Role) String() string { return string(r) }

// Status is a membership's lifecycle state. Only ACTIVE members hold any
// permissions, regardless of role.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// Membership links a user to a family with a role and status. Owned by the
// external identity/membership provider; read-only to this subsystem.
type Membership struct {
	UserID   id.UserID
	FamilyID id.FamilyID
	Role     Role
	Status   Status
	JoinedAt time.Time
}

// IsActive reports whether the membership currently confers permissions.
func (m Membership) IsActive() bool {
	return m.Status == StatusActive
}
