package danger

import (
	"context"
	"fmt"

	"famledger/internal/membership"
	id "famledger/pkg/domain"
)

// approverRoles are the roles whose holders form the approval quorum.
var approverRoles = []membership.Role{membership.RolePresident, membership.RoleTreasurer}

// QuorumResolver computes the required approver slots for a new request from
// the family's current active leadership.
type QuorumResolver struct {
	members membership.Store
}

func NewQuorumResolver(members membership.Store) (*QuorumResolver, error) {
	if members == nil {
		return nil, fmt.Errorf("membership store is required")
	}
	return &QuorumResolver{members: members}, nil
}

// Resolve returns one role slot per approver role that has at least one
// active holder other than the requester. The requester can never approve
// their own request, so a role held only by the requester contributes no
// slot. An empty result means the family cannot form a quorum; the workflow
// refuses such requests rather than creating an unapprovable one.
//
// Slots are frozen onto the request at creation. Later membership changes do
// not rewrite the quorum of in-flight requests.
func (q *QuorumResolver) Resolve(ctx context.Context, familyID id.FamilyID, requestedBy id.UserID) ([]ApproverRef, error) {
	holders, err := q.members.ListActiveByRoles(ctx, familyID, approverRoles)
	if err != nil {
		return nil, fmt.Errorf("resolve quorum: %w", err)
	}

	eligible := make(map[membership.Role]bool)
	for _, m := range holders {
		if m.UserID == requestedBy {
			continue
		}
		eligible[m.Role] = true
	}

	var slots []ApproverRef
	for _, role := range approverRoles {
		if eligible[role] {
			slots = append(slots, RoleRef(role))
		}
	}
	return slots, nil
}

// Approvers returns the user IDs currently able to satisfy the quorum:
// active leadership other than the requester. Unlike slots this set is not
// frozen; it addresses notifications to whoever holds the roles right now.
func (q *QuorumResolver) Approvers(ctx context.Context, familyID id.FamilyID, requestedBy id.UserID) ([]id.UserID, error) {
	holders, err := q.members.ListActiveByRoles(ctx, familyID, approverRoles)
	if err != nil {
		return nil, fmt.Errorf("resolve approvers: %w", err)
	}

	var approvers []id.UserID
	for _, m := range holders {
		if m.UserID == requestedBy {
			continue
		}
		approvers = append(approvers, m.UserID)
	}
	return approvers, nil
}
