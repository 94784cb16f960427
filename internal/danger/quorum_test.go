package danger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famledger/internal/membership"
	id "famledger/pkg/domain"
)

func seedQuorumMember(t *testing.T, members *membership.InMemory, familyID id.FamilyID, role membership.Role, status membership.Status) id.UserID {
	t.Helper()
	userID := id.NewUserID()
	require.NoError(t, members.Upsert(context.Background(), membership.Membership{
		UserID:   userID,
		FamilyID: familyID,
		Role:     role,
		Status:   status,
		JoinedAt: time.Now(),
	}))
	return userID
}

func roleSlots(slots []ApproverRef) []membership.Role {
	roles := make([]membership.Role, 0, len(slots))
	for _, s := range slots {
		if s.Role != nil {
			roles = append(roles, *s.Role)
		}
	}
	return roles
}

func TestQuorumResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("full leadership yields one slot per role", func(t *testing.T) {
		members := membership.NewInMemory()
		familyID := id.NewFamilyID()
		seedQuorumMember(t, members, familyID, membership.RolePresident, membership.StatusActive)
		seedQuorumMember(t, members, familyID, membership.RoleTreasurer, membership.StatusActive)
		requester := seedQuorumMember(t, members, familyID, membership.RoleMember, membership.StatusActive)

		resolver, err := NewQuorumResolver(members)
		require.NoError(t, err)
		slots, err := resolver.Resolve(ctx, familyID, requester)
		require.NoError(t, err)
		assert.Equal(t, []membership.Role{membership.RolePresident, membership.RoleTreasurer}, roleSlots(slots))
	})

	t.Run("a role held only by the requester contributes no slot", func(t *testing.T) {
		members := membership.NewInMemory()
		familyID := id.NewFamilyID()
		president := seedQuorumMember(t, members, familyID, membership.RolePresident, membership.StatusActive)
		seedQuorumMember(t, members, familyID, membership.RoleTreasurer, membership.StatusActive)

		resolver, err := NewQuorumResolver(members)
		require.NoError(t, err)
		slots, err := resolver.Resolve(ctx, familyID, president)
		require.NoError(t, err)
		assert.Equal(t, []membership.Role{membership.RoleTreasurer}, roleSlots(slots))
	})

	t.Run("inactive leadership is excluded", func(t *testing.T) {
		members := membership.NewInMemory()
		familyID := id.NewFamilyID()
		seedQuorumMember(t, members, familyID, membership.RolePresident, membership.StatusInactive)
		requester := seedQuorumMember(t, members, familyID, membership.RoleMember, membership.StatusActive)

		resolver, err := NewQuorumResolver(members)
		require.NoError(t, err)
		slots, err := resolver.Resolve(ctx, familyID, requester)
		require.NoError(t, err)
		assert.Empty(t, slots)
	})
}

func TestQuorumApprovers(t *testing.T) {
	ctx := context.Background()
	members := membership.NewInMemory()
	familyID := id.NewFamilyID()
	president := seedQuorumMember(t, members, familyID, membership.RolePresident, membership.StatusActive)
	treasurer := seedQuorumMember(t, members, familyID, membership.RoleTreasurer, membership.StatusActive)
	seedQuorumMember(t, members, familyID, membership.RolePresident, membership.StatusInactive)
	requester := seedQuorumMember(t, members, familyID, membership.RoleMember, membership.StatusActive)

	resolver, err := NewQuorumResolver(members)
	require.NoError(t, err)

	t.Run("returns the active leadership", func(t *testing.T) {
		approvers, err := resolver.Approvers(ctx, familyID, requester)
		require.NoError(t, err)
		assert.ElementsMatch(t, []id.UserID{president, treasurer}, approvers)
	})

	t.Run("excludes the requester", func(t *testing.T) {
		approvers, err := resolver.Approvers(ctx, familyID, president)
		require.NoError(t, err)
		assert.ElementsMatch(t, []id.UserID{treasurer}, approvers)
	})
}

func TestApproverRefMatches(t *testing.T) {
	userID := id.NewUserID()

	t.Run("user slot matches only that user", func(t *testing.T) {
		slot := UserRef(userID)
		assert.True(t, slot.Matches(userID, membership.RoleMember))
		assert.False(t, slot.Matches(id.NewUserID(), membership.RolePresident))
	})

	t.Run("role slot matches the exact role only", func(t *testing.T) {
		slot := RoleRef(membership.RoleTreasurer)
		assert.True(t, slot.Matches(userID, membership.RoleTreasurer))
		assert.False(t, slot.Matches(userID, membership.RolePresident))
	})

	t.Run("empty slot matches nobody", func(t *testing.T) {
		assert.False(t, ApproverRef{}.Matches(userID, membership.RolePresident))
	})
}
