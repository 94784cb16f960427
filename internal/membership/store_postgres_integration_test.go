//go:build integration

package membership

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "famledger/pkg/domain"
	"famledger/pkg/platform/sentinel"
	"famledger/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := NewPostgres(pg.DB)
	ctx := context.Background()

	reset := func(t *testing.T) {
		t.Helper()
		require.NoError(t, pg.Truncate(ctx, "family_members"))
	}

	newMembership := func(familyID id.FamilyID, role Role, joinedAt time.Time) Membership {
		return Membership{
			UserID:   id.NewUserID(),
			FamilyID: familyID,
			Role:     role,
			Status:   StatusActive,
			JoinedAt: joinedAt.UTC().Truncate(time.Microsecond),
		}
	}

	t.Run("round-trips a membership", func(t *testing.T) {
		reset(t)
		m := newMembership(id.NewFamilyID(), RolePresident, time.Now())
		require.NoError(t, store.Upsert(ctx, m))

		found, err := store.Find(ctx, m.UserID, m.FamilyID)
		require.NoError(t, err)
		assert.Equal(t, m.Role, found.Role)
		assert.Equal(t, StatusActive, found.Status)
		assert.True(t, m.JoinedAt.Equal(found.JoinedAt))
	})

	t.Run("missing memberships report not found", func(t *testing.T) {
		reset(t)
		_, err := store.Find(ctx, id.NewUserID(), id.NewFamilyID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("upsert replaces role and status", func(t *testing.T) {
		reset(t)
		m := newMembership(id.NewFamilyID(), RoleMember, time.Now())
		require.NoError(t, store.Upsert(ctx, m))

		m.Role = RoleTreasurer
		m.Status = StatusInactive
		require.NoError(t, store.Upsert(ctx, m))

		found, err := store.Find(ctx, m.UserID, m.FamilyID)
		require.NoError(t, err)
		assert.Equal(t, RoleTreasurer, found.Role)
		assert.Equal(t, StatusInactive, found.Status)
	})

	t.Run("listing returns active leadership only", func(t *testing.T) {
		reset(t)
		familyID := id.NewFamilyID()
		base := time.Now().Add(-time.Hour)

		president := newMembership(familyID, RolePresident, base)
		treasurer := newMembership(familyID, RoleTreasurer, base.Add(time.Minute))
		member := newMembership(familyID, RoleMember, base.Add(2*time.Minute))
		former := newMembership(familyID, RolePresident, base.Add(3*time.Minute))
		former.Status = StatusInactive
		other := newMembership(id.NewFamilyID(), RolePresident, base)

		for _, m := range []Membership{president, treasurer, member, former, other} {
			require.NoError(t, store.Upsert(ctx, m))
		}

		leaders, err := store.ListActiveByRoles(ctx, familyID, []Role{RolePresident, RoleTreasurer})
		require.NoError(t, err)
		require.Len(t, leaders, 2)
		assert.Equal(t, president.UserID, leaders[0].UserID)
		assert.Equal(t, treasurer.UserID, leaders[1].UserID)
	})
}
