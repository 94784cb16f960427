package permission

import (
	"context"
	"sync"

	"famledger/internal/membership"
)

// InMemory holds the role → permission table in memory, pre-seeded with
// DefaultGrants.
type InMemory struct {
	mu     sync.RWMutex
	grants map[membership.Role]map[Permission]bool
}

func NewInMemory() *InMemory {
	s := &InMemory{grants: make(map[membership.Role]map[Permission]bool)}
	_ = s.Seed(context.Background(), DefaultGrants)
	return s
}

func (s *InMemory) EnabledPermissions(_ context.Context, role membership.Role) (map[Permission]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enabled := make(map[Permission]bool, len(s.grants[role]))
	for p, ok := range s.grants[role] {
		if ok {
			enabled[p] = true
		}
	}
	return enabled, nil
}

func (s *InMemory) Seed(_ context.Context, grants map[membership.Role][]Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.grants = make(map[membership.Role]map[Permission]bool, len(grants))
	for role, perms := range grants {
		set := make(map[Permission]bool, len(perms))
		for _, p := range perms {
			set[p] = true
		}
		s.grants[role] = set
	}
	return nil
}
