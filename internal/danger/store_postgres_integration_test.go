//go:build integration

package danger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famledger/internal/membership"
	id "famledger/pkg/domain"
	"famledger/pkg/platform/sentinel"
	"famledger/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := NewPostgresStore(pg.DB)
	ctx := context.Background()

	reset := func(t *testing.T) {
		t.Helper()
		require.NoError(t, pg.Truncate(ctx, "danger_action_requests"))
	}

	newRequest := func() CriticalActionRequest {
		now := time.Now().UTC().Truncate(time.Microsecond)
		return CriticalActionRequest{
			ID:              id.NewActionRequestID(),
			FamilyID:        id.NewFamilyID(),
			Kind:            KindDeleteGroup,
			Payload:         []byte(`{"confirm":"our-family"}`),
			Reason:          "integration test",
			RequestedBy:     id.NewUserID(),
			RequestedByRole: membership.RoleMember,
			Status:          StatusPending,
			RequiredApprovers: []ApproverRef{
				RoleRef(membership.RolePresident),
				RoleRef(membership.RoleTreasurer),
			},
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	t.Run("round-trips a request with slots and approvals", func(t *testing.T) {
		reset(t)
		req := newRequest()
		approver := id.NewUserID()
		req.Approvals = []Approval{{
			UserID:     approver,
			Role:       membership.RolePresident,
			Reason:     "fine by me",
			ApprovedAt: req.CreatedAt,
		}}
		require.NoError(t, store.Create(ctx, req))

		found, err := store.FindByID(ctx, req.FamilyID, req.ID)
		require.NoError(t, err)
		assert.Equal(t, req.Kind, found.Kind)
		assert.JSONEq(t, string(req.Payload), string(found.Payload))
		require.Len(t, found.RequiredApprovers, 2)
		assert.Equal(t, membership.RolePresident, *found.RequiredApprovers[0].Role)
		require.Len(t, found.Approvals, 1)
		assert.Equal(t, approver, found.Approvals[0].UserID)
		assert.True(t, req.CreatedAt.Equal(found.CreatedAt))
	})

	t.Run("duplicate creates are rejected", func(t *testing.T) {
		reset(t)
		req := newRequest()
		require.NoError(t, store.Create(ctx, req))
		assert.ErrorIs(t, store.Create(ctx, req), sentinel.ErrDuplicate)
	})

	t.Run("update enforces compare-and-swap", func(t *testing.T) {
		reset(t)
		req := newRequest()
		require.NoError(t, store.Create(ctx, req))

		next := req
		next.Status = StatusRejected
		next.Version = 2
		next.UpdatedAt = time.Now().UTC()
		require.NoError(t, store.Update(ctx, next, 1))

		stale := req
		stale.Status = StatusApproved
		stale.Version = 2
		assert.ErrorIs(t, store.Update(ctx, stale, 1), sentinel.ErrVersionConflict)

		missing := newRequest()
		assert.ErrorIs(t, store.Update(ctx, missing, 1), sentinel.ErrNotFound)
	})

	t.Run("claim execution flips approved requests after cooling", func(t *testing.T) {
		reset(t)
		req := newRequest()
		req.Status = StatusApproved
		coolingEndsAt := time.Now().UTC().Add(-time.Minute)
		req.CoolingEndsAt = &coolingEndsAt
		require.NoError(t, store.Create(ctx, req))

		claimed, err := store.ClaimExecution(ctx, req.FamilyID, req.ID, time.Now().UTC(), "executor-1")
		require.NoError(t, err)
		assert.Equal(t, StatusExecuted, claimed.Status)
		assert.Equal(t, "executor-1", claimed.ExecutedBy)

		_, err = store.ClaimExecution(ctx, req.FamilyID, req.ID, time.Now().UTC(), "executor-2")
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})

	t.Run("claim execution refuses an active cooling period", func(t *testing.T) {
		reset(t)
		req := newRequest()
		req.Status = StatusApproved
		coolingEndsAt := time.Now().UTC().Add(time.Hour)
		req.CoolingEndsAt = &coolingEndsAt
		require.NoError(t, store.Create(ctx, req))

		_, err := store.ClaimExecution(ctx, req.FamilyID, req.ID, time.Now().UTC(), "executor-1")
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})

	t.Run("release execution reverts the claim", func(t *testing.T) {
		reset(t)
		req := newRequest()
		req.Status = StatusApproved
		require.NoError(t, store.Create(ctx, req))

		_, err := store.ClaimExecution(ctx, req.FamilyID, req.ID, time.Now().UTC(), "executor-1")
		require.NoError(t, err)
		require.NoError(t, store.ReleaseExecution(ctx, req.FamilyID, req.ID))

		released, err := store.FindByID(ctx, req.FamilyID, req.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, released.Status)
		assert.Nil(t, released.ExecutedAt)
	})

	t.Run("listing filters by status newest-first", func(t *testing.T) {
		reset(t)
		familyID := id.NewFamilyID()
		for i := 0; i < 3; i++ {
			req := newRequest()
			req.FamilyID = familyID
			req.CreatedAt = req.CreatedAt.Add(time.Duration(i) * time.Second)
			if i == 2 {
				req.Status = StatusRejected
			}
			require.NoError(t, store.Create(ctx, req))
		}

		all, err := store.ListByFamily(ctx, familyID, "")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.True(t, all[0].CreatedAt.After(all[2].CreatedAt))

		pending, err := store.ListByFamily(ctx, familyID, StatusPending)
		require.NoError(t, err)
		assert.Len(t, pending, 2)
	})
}
