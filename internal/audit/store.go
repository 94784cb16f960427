package audit

import (
	"context"

	id "famledger/pkg/domain"
)

// Filter narrows a family trail listing. Zero values mean "no constraint";
// Limit of 0 falls back to DefaultPageSize.
type Filter struct {
	EntityType string
	Action     string
	Severity   Severity
	ActorID    id.UserID
	Limit      int
	Offset     int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultPageSize
	case f.Limit > MaxPageSize:
		return MaxPageSize
	default:
		return f.Limit
	}
}

// Store is the append-only persistence boundary for audit entries. There is
// deliberately no update or delete: history is immutable once written.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	FindByID(ctx context.Context, familyID id.FamilyID, entryID id.AuditEntryID) (Entry, error)
	// ListByFamily returns entries newest-first.
	ListByFamily(ctx context.Context, familyID id.FamilyID, filter Filter) ([]Entry, error)
	// ListByEntity returns the full history of one entity, newest-first.
	ListByEntity(ctx context.Context, familyID id.FamilyID, entityType, entityID string) ([]Entry, error)
}
