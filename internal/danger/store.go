package danger

import (
	"context"
	"time"

	id "famledger/pkg/domain"
)

// Store persists critical action requests.
//
// Update is a compare-and-swap: it persists the request only if the stored
// version equals expectedVersion, returning sentinel.ErrVersionConflict
// otherwise. Concurrent approvals retry on conflict instead of clobbering
// each other's approval lists.
//
// ClaimExecution atomically flips APPROVED to EXECUTED, but only when the
// cooling period has elapsed; it returns sentinel.ErrInvalidState when the
// request is not claimable, leaving the caller to re-read and diagnose.
// ReleaseExecution is the compensating revert for a claim whose executor
// failed, returning the request to APPROVED for a later retry.
type Store interface {
	Create(ctx context.Context, req CriticalActionRequest) error
	FindByID(ctx context.Context, familyID id.FamilyID, requestID id.ActionRequestID) (CriticalActionRequest, error)
	// ListByFamily returns requests newest-first, optionally filtered by
	// status when status is non-empty.
	ListByFamily(ctx context.Context, familyID id.FamilyID, status Status) ([]CriticalActionRequest, error)
	Update(ctx context.Context, req CriticalActionRequest, expectedVersion int) error
	ClaimExecution(ctx context.Context, familyID id.FamilyID, requestID id.ActionRequestID, now time.Time, executedBy string) (CriticalActionRequest, error)
	ReleaseExecution(ctx context.Context, familyID id.FamilyID, requestID id.ActionRequestID) error
}
