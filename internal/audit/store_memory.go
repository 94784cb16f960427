package audit

import (
	"context"
	"sort"
	"sync"

	id "famledger/pkg/domain"
	"famledger/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded append-only trail for dev and tests.
type InMemory struct {
	mu      sync.RWMutex
	entries map[id.FamilyID][]Entry
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[id.FamilyID][]Entry)}
}

func (s *InMemory) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.FamilyID] = append(s.entries[entry.FamilyID], entry)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, familyID id.FamilyID, entryID id.AuditEntryID) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries[familyID] {
		if e.ID == entryID {
			return e, nil
		}
	}
	return Entry{}, sentinel.ErrNotFound
}

func (s *InMemory) ListByFamily(_ context.Context, familyID id.FamilyID, filter Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, e := range s.entries[familyID] {
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.Severity != "" && e.Severity != filter.Severity {
			continue
		}
		if !filter.ActorID.IsNil() && e.ActorID != filter.ActorID {
			continue
		}
		out = append(out, e)
	}
	sortNewestFirst(out)
	return paginate(out, filter.Offset, filter.limit()), nil
}

func (s *InMemory) ListByEntity(_ context.Context, familyID id.FamilyID, entityType, entityID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, e := range s.entries[familyID] {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}

func paginate(entries []Entry, offset, limit int) []Entry {
	if offset >= len(entries) {
		return nil
	}
	entries = entries[offset:]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
