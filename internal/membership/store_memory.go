package membership

import (
	"context"
	"sort"
	"sync"

	id "famledger/pkg/domain"
	"famledger/pkg/platform/sentinel"
)

type memberKey struct {
	userID   id.UserID
	familyID id.FamilyID
}

// InMemory is a mutex-guarded membership store for dev and tests.
type InMemory struct {
	mu      sync.RWMutex
	members map[memberKey]Membership
}

func NewInMemory() *InMemory {
	return &InMemory{members: make(map[memberKey]Membership)}
}

func (s *InMemory) Find(_ context.Context, userID id.UserID, familyID id.FamilyID) (Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[memberKey{userID: userID, familyID: familyID}]
	if !ok {
		return Membership{}, sentinel.ErrNotFound
	}
	return m, nil
}

func (s *InMemory) ListActiveByRoles(_ context.Context, familyID id.FamilyID, roles []Role) ([]Membership, error) {
	wanted := make(map[Role]bool, len(roles))
	for _, r := range roles {
		wanted[r] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Membership
	for key, m := range s.members {
		if key.familyID != familyID || !m.IsActive() || !wanted[m.Role] {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].UserID.String() < out[j].UserID.String()
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (s *InMemory) Upsert(_ context.Context, m Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[memberKey{userID: m.UserID, familyID: m.FamilyID}] = m
	return nil
}
