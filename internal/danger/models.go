// Package danger implements the governed lifecycle of critical family
// actions: request, quorum approval, cooling period, and execution.
package danger

import (
	"encoding/json"
	"time"

	"famledger/internal/membership"
	id "famledger/pkg/domain"
)

// ActionKind identifies a governed action. Every kind has a registered
// executor; requests for unknown kinds are rejected at creation.
type ActionKind string

const (
	KindUpdateCriticalSettings ActionKind = "update_critical_settings"
	KindDeleteGroup            ActionKind = "delete_group"
	KindOverrideContribution   ActionKind = "override_contribution"
	KindResetLeaderboard       ActionKind = "reset_leaderboard"
)

var validKinds = map[ActionKind]bool{
	KindUpdateCriticalSettings: true,
	KindDeleteGroup:            true,
	KindOverrideContribution:   true,
	KindResetLeaderboard:       true,
}

func (k ActionKind) IsValid() bool { return validKinds[k] }

func (k ActionKind) String() string { return string(k) }

// Kinds returns all governed action kinds in declaration order.
func Kinds() []ActionKind {
	return []ActionKind{
		KindUpdateCriticalSettings,
		KindDeleteGroup,
		KindOverrideContribution,
		KindResetLeaderboard,
	}
}

// Status is the request lifecycle state. PENDING and APPROVED are live;
// REJECTED and EXECUTED are terminal.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusExecuted Status = "EXECUTED"
)

func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusExecuted
}

// ApproverRef is one required approval slot. Exactly one of UserID or Role is
// set: a slot either names a specific member or accepts any holder of a role.
type ApproverRef struct {
	UserID *id.UserID
	Role   *membership.Role
}

// Matches reports whether an approval by the given member satisfies this
// slot. Matching is literal: a user slot matches only that user ID, a role
// slot matches only that exact role.
func (r ApproverRef) Matches(userID id.UserID, role membership.Role) bool {
	if r.UserID != nil {
		return *r.UserID == userID
	}
	if r.Role != nil {
		return *r.Role == role
	}
	return false
}

// UserRef builds a slot bound to one member.
func UserRef(userID id.UserID) ApproverRef {
	return ApproverRef{UserID: &userID}
}

// RoleRef builds a slot satisfiable by any active holder of the role.
func RoleRef(role membership.Role) ApproverRef {
	return ApproverRef{Role: &role}
}

// Approval records one granted approval with the approver's role at the time
// of approval, frozen for the audit record even if the role changes later.
type Approval struct {
	UserID     id.UserID
	Role       membership.Role
	Reason     string
	ApprovedAt time.Time
}

// CriticalActionRequest is a governed action moving through the workflow.
// Payload holds the raw action input; DecodePayload projects it into the
// kind's typed variant.
type CriticalActionRequest struct {
	ID       id.ActionRequestID
	FamilyID id.FamilyID
	Kind     ActionKind
	Payload  json.RawMessage
	Reason   string

	RequestedBy     id.UserID
	RequestedByRole membership.Role

	Status            Status
	RequiredApprovers []ApproverRef
	Approvals         []Approval

	RejectedBy      *id.UserID
	RejectionReason string

	// CoolingEndsAt is set when the quorum completes; execution before it
	// is refused.
	CoolingEndsAt *time.Time
	ExecutedAt    *time.Time
	ExecutedBy    string

	// Version guards concurrent approvals via compare-and-swap updates.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasApproved reports whether the member already granted an approval.
func (r *CriticalActionRequest) HasApproved(userID id.UserID) bool {
	for _, a := range r.Approvals {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// QuorumMet reports whether every required slot is satisfied by at least one
// recorded approval.
func (r *CriticalActionRequest) QuorumMet() bool {
	for _, slot := range r.RequiredApprovers {
		satisfied := false
		for _, a := range r.Approvals {
			if slot.Matches(a.UserID, a.Role) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	return true
}

// CoolingActive reports whether the cooling period is still running at the
// given instant.
func (r *CriticalActionRequest) CoolingActive(now time.Time) bool {
	return r.CoolingEndsAt != nil && now.Before(*r.CoolingEndsAt)
}
