package danger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"famledger/internal/membership"
	id "famledger/pkg/domain"
	"famledger/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newRequest(status Status) CriticalActionRequest {
	return CriticalActionRequest{
		ID:                id.NewActionRequestID(),
		FamilyID:          id.NewFamilyID(),
		Kind:              KindResetLeaderboard,
		Reason:            "test",
		RequestedBy:       id.NewUserID(),
		RequestedByRole:   membership.RoleMember,
		Status:            status,
		RequiredApprovers: []ApproverRef{RoleRef(membership.RolePresident)},
		Version:           1,
		CreatedAt:         s.now,
		UpdatedAt:         s.now,
	}
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	req := s.newRequest(StatusPending)
	s.Require().NoError(s.store.Create(context.Background(), req))

	found, err := s.store.FindByID(context.Background(), req.FamilyID, req.ID)
	s.Require().NoError(err)
	s.Equal(req.ID, found.ID)
	s.Equal(StatusPending, found.Status)

	s.ErrorIs(s.store.Create(context.Background(), req), sentinel.ErrDuplicate)
}

func (s *InMemoryStoreSuite) TestFindIsFamilyScoped() {
	req := s.newRequest(StatusPending)
	s.Require().NoError(s.store.Create(context.Background(), req))

	_, err := s.store.FindByID(context.Background(), id.NewFamilyID(), req.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestUpdateIsCompareAndSwap() {
	req := s.newRequest(StatusPending)
	s.Require().NoError(s.store.Create(context.Background(), req))

	next := req
	next.Status = StatusRejected
	next.Version = 2
	s.Require().NoError(s.store.Update(context.Background(), next, 1))

	stale := req
	stale.Status = StatusApproved
	stale.Version = 2
	s.ErrorIs(s.store.Update(context.Background(), stale, 1), sentinel.ErrVersionConflict)
}

func (s *InMemoryStoreSuite) TestClaimExecution() {
	req := s.newRequest(StatusApproved)
	coolingEndsAt := s.now.Add(-time.Hour)
	req.CoolingEndsAt = &coolingEndsAt
	s.Require().NoError(s.store.Create(context.Background(), req))

	claimed, err := s.store.ClaimExecution(context.Background(), req.FamilyID, req.ID, s.now, "user-1")
	s.Require().NoError(err)
	s.Equal(StatusExecuted, claimed.Status)
	s.Equal("user-1", claimed.ExecutedBy)
	s.Require().NotNil(claimed.ExecutedAt)

	// A second claim loses the race.
	_, err = s.store.ClaimExecution(context.Background(), req.FamilyID, req.ID, s.now, "user-2")
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *InMemoryStoreSuite) TestClaimExecutionRespectsCooling() {
	req := s.newRequest(StatusApproved)
	coolingEndsAt := s.now.Add(time.Hour)
	req.CoolingEndsAt = &coolingEndsAt
	s.Require().NoError(s.store.Create(context.Background(), req))

	_, err := s.store.ClaimExecution(context.Background(), req.FamilyID, req.ID, s.now, "user-1")
	s.ErrorIs(err, sentinel.ErrInvalidState)

	_, err = s.store.ClaimExecution(context.Background(), req.FamilyID, req.ID, coolingEndsAt, "user-1")
	s.NoError(err)
}

func (s *InMemoryStoreSuite) TestReleaseExecution() {
	req := s.newRequest(StatusApproved)
	s.Require().NoError(s.store.Create(context.Background(), req))

	claimed, err := s.store.ClaimExecution(context.Background(), req.FamilyID, req.ID, s.now, "user-1")
	s.Require().NoError(err)

	s.Require().NoError(s.store.ReleaseExecution(context.Background(), req.FamilyID, req.ID))

	released, err := s.store.FindByID(context.Background(), req.FamilyID, req.ID)
	s.Require().NoError(err)
	s.Equal(StatusApproved, released.Status)
	s.Nil(released.ExecutedAt)
	s.Empty(released.ExecutedBy)
	s.Greater(released.Version, claimed.Version)
}

func (s *InMemoryStoreSuite) TestReturnedValuesAreCopies() {
	req := s.newRequest(StatusPending)
	s.Require().NoError(s.store.Create(context.Background(), req))

	found, err := s.store.FindByID(context.Background(), req.FamilyID, req.ID)
	s.Require().NoError(err)
	found.Approvals = append(found.Approvals, Approval{UserID: id.NewUserID()})
	*found.RequiredApprovers[0].Role = membership.RoleMember

	again, err := s.store.FindByID(context.Background(), req.FamilyID, req.ID)
	s.Require().NoError(err)
	s.Empty(again.Approvals)
	s.Equal(membership.RolePresident, *again.RequiredApprovers[0].Role)
}

func TestListByFamilyOrdering(t *testing.T) {
	store := NewInMemoryStore()
	familyID := id.NewFamilyID()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	var ids []id.ActionRequestID
	for i := 0; i < 3; i++ {
		req := CriticalActionRequest{
			ID:        id.NewActionRequestID(),
			FamilyID:  familyID,
			Kind:      KindResetLeaderboard,
			Status:    StatusPending,
			Version:   1,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.Create(context.Background(), req))
		ids = append(ids, req.ID)
	}

	all, err := store.ListByFamily(context.Background(), familyID, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)

	pending, err := store.ListByFamily(context.Background(), familyID, StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	none, err := store.ListByFamily(context.Background(), familyID, StatusRejected)
	require.NoError(t, err)
	assert.Empty(t, none)
}
