package membership

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "famledger/pkg/domain"
	"famledger/pkg/platform/sentinel"
)

type MembershipStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *MembershipStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestMembershipStoreSuite(t *testing.T) {
	suite.Run(t, new(MembershipStoreSuite))
}

func (s *MembershipStoreSuite) newMember(familyID id.FamilyID, role Role, status Status, joined time.Time) Membership {
	return Membership{
		UserID:   id.NewUserID(),
		FamilyID: familyID,
		Role:     role,
		Status:   status,
		JoinedAt: joined,
	}
}

func (s *MembershipStoreSuite) TestFind() {
	familyID := id.NewFamilyID()

	s.Run("finds an upserted membership", func() {
		m := s.newMember(familyID, RoleTreasurer, StatusActive, time.Now())
		s.Require().NoError(s.store.Upsert(s.ctx, m))

		found, err := s.store.Find(s.ctx, m.UserID, familyID)
		s.Require().NoError(err)
		s.Equal(RoleTreasurer, found.Role)
	})

	s.Run("returns ErrNotFound for an unknown member", func() {
		_, err := s.store.Find(s.ctx, id.NewUserID(), familyID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("scopes lookups to the family", func() {
		m := s.newMember(familyID, RoleMember, StatusActive, time.Now())
		s.Require().NoError(s.store.Upsert(s.ctx, m))

		_, err := s.store.Find(s.ctx, m.UserID, id.NewFamilyID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MembershipStoreSuite) TestListActiveByRoles() {
	familyID := id.NewFamilyID()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	president := s.newMember(familyID, RolePresident, StatusActive, base)
	treasurer := s.newMember(familyID, RoleTreasurer, StatusActive, base.Add(time.Hour))
	inactiveTreasurer := s.newMember(familyID, RoleTreasurer, StatusInactive, base.Add(2*time.Hour))
	plainMember := s.newMember(familyID, RoleMember, StatusActive, base.Add(3*time.Hour))

	for _, m := range []Membership{president, treasurer, inactiveTreasurer, plainMember} {
		s.Require().NoError(s.store.Upsert(s.ctx, m))
	}

	s.Run("filters by role and active status", func() {
		got, err := s.store.ListActiveByRoles(s.ctx, familyID, []Role{RolePresident, RoleTreasurer})
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(president.UserID, got[0].UserID)
		s.Equal(treasurer.UserID, got[1].UserID)
	})

	s.Run("returns empty for a family with no matching members", func() {
		got, err := s.store.ListActiveByRoles(s.ctx, id.NewFamilyID(), []Role{RolePresident})
		s.Require().NoError(err)
		s.Empty(got)
	})
}
