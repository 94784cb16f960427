package permission

import (
	"context"

	"famledger/internal/membership"
)

// GrantStore resolves the enabled permission set for a role. The table is
// read-mostly: it is loaded once per check and mutated only by the
// administrative seeding process.
type GrantStore interface {
	EnabledPermissions(ctx context.Context, role membership.Role) (map[Permission]bool, error)
}

// GrantSeeder extends GrantStore with the seeding mutation. Workflow logic
// must never hold a GrantSeeder.
type GrantSeeder interface {
	GrantStore
	Seed(ctx context.Context, grants map[membership.Role][]Permission) error
}
