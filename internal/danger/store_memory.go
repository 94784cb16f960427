package danger

import (
	"context"
	"sort"
	"sync"
	"time"

	id "famledger/pkg/domain"
	"famledger/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded request store for dev and tests.
type InMemory struct {
	mu       sync.RWMutex
	requests map[id.ActionRequestID]CriticalActionRequest
}

func NewInMemoryStore() *InMemory {
	return &InMemory{requests: make(map[id.ActionRequestID]CriticalActionRequest)}
}

func (s *InMemory) Create(_ context.Context, req CriticalActionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return sentinel.ErrDuplicate
	}
	s.requests[req.ID] = cloneRequest(req)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, familyID id.FamilyID, requestID id.ActionRequestID) (CriticalActionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[requestID]
	if !ok || req.FamilyID != familyID {
		return CriticalActionRequest{}, sentinel.ErrNotFound
	}
	return cloneRequest(req), nil
}

func (s *InMemory) ListByFamily(_ context.Context, familyID id.FamilyID, status Status) ([]CriticalActionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []CriticalActionRequest
	for _, req := range s.requests {
		if req.FamilyID != familyID {
			continue
		}
		if status != "" && req.Status != status {
			continue
		}
		out = append(out, cloneRequest(req))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) Update(_ context.Context, req CriticalActionRequest, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[req.ID]
	if !ok || current.FamilyID != req.FamilyID {
		return sentinel.ErrNotFound
	}
	if current.Version != expectedVersion {
		return sentinel.ErrVersionConflict
	}
	s.requests[req.ID] = cloneRequest(req)
	return nil
}

func (s *InMemory) ClaimExecution(_ context.Context, familyID id.FamilyID, requestID id.ActionRequestID, now time.Time, executedBy string) (CriticalActionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok || req.FamilyID != familyID {
		return CriticalActionRequest{}, sentinel.ErrNotFound
	}
	if req.Status != StatusApproved || req.CoolingActive(now) {
		return CriticalActionRequest{}, sentinel.ErrInvalidState
	}

	req.Status = StatusExecuted
	executedAt := now
	req.ExecutedAt = &executedAt
	req.ExecutedBy = executedBy
	req.Version++
	req.UpdatedAt = now
	s.requests[requestID] = cloneRequest(req)
	return cloneRequest(req), nil
}

func (s *InMemory) ReleaseExecution(_ context.Context, familyID id.FamilyID, requestID id.ActionRequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok || req.FamilyID != familyID {
		return sentinel.ErrNotFound
	}
	if req.Status != StatusExecuted {
		return sentinel.ErrInvalidState
	}

	req.Status = StatusApproved
	req.ExecutedAt = nil
	req.ExecutedBy = ""
	req.Version++
	s.requests[requestID] = cloneRequest(req)
	return nil
}

// cloneRequest deep-copies the slices and pointers so callers cannot mutate
// stored state through returned values.
func cloneRequest(req CriticalActionRequest) CriticalActionRequest {
	out := req
	out.Payload = append([]byte(nil), req.Payload...)
	out.RequiredApprovers = make([]ApproverRef, len(req.RequiredApprovers))
	for i, ref := range req.RequiredApprovers {
		out.RequiredApprovers[i] = cloneRef(ref)
	}
	out.Approvals = append([]Approval(nil), req.Approvals...)
	out.RejectedBy = clonePtr(req.RejectedBy)
	out.CoolingEndsAt = clonePtr(req.CoolingEndsAt)
	out.ExecutedAt = clonePtr(req.ExecutedAt)
	return out
}

func cloneRef(ref ApproverRef) ApproverRef {
	return ApproverRef{UserID: clonePtr(ref.UserID), Role: clonePtr(ref.Role)}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
