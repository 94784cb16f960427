package membership

import (
	"context"

	id "famledger/pkg/domain"
)

// Store is the read model over the external membership provider's data.
// Implementations return sentinel.ErrNotFound when no membership links the
// user to the family.
type Store interface {
	Find(ctx context.Context, userID id.UserID, familyID id.FamilyID) (Membership, error)

	// ListActiveByRoles returns every ACTIVE member of the family holding one
	// of the given roles, in stable (joined-at) order.
	ListActiveByRoles(ctx context.Context, familyID id.FamilyID, roles []Role) ([]Membership, error)
}

// Writer extends Store with mutation used by the administrative seeding
// process and tests. The workflow itself never writes memberships.
type Writer interface {
	Store
	Upsert(ctx context.Context, m Membership) error
}
