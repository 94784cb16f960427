package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "famledger/pkg/domain"
	"famledger/pkg/platform/sentinel"
	"famledger/pkg/platform/tx"
)

// Postgres persists the trail in the audit_entries table. Writes go through
// the transaction in context when one is present so entries commit atomically
// with the mutation they describe.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) conn(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

const entryColumns = `
	id, family_id, entity_type, entity_id, action,
	actor_id, actor_role, before_state, after_state,
	severity, affects_money, affects_streaks, affects_rules,
	human_summary, reason, ip_address, device_info, request_id, created_at
`

func (s *Postgres) Append(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO audit_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(e.ID),
		uuid.UUID(e.FamilyID),
		e.EntityType,
		e.EntityID,
		e.Action,
		uuid.UUID(e.ActorID),
		e.ActorRole,
		nullableJSON(e.BeforeState),
		nullableJSON(e.AfterState),
		string(e.Severity),
		e.AffectsMoney,
		e.AffectsStreaks,
		e.AffectsRules,
		e.HumanSummary,
		e.Reason,
		e.IPAddress,
		e.DeviceInfo,
		e.RequestID,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, familyID id.FamilyID, entryID id.AuditEntryID) (Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM audit_entries
		WHERE family_id = $1 AND id = $2
	`
	row := s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(familyID), uuid.UUID(entryID))

	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, sentinel.ErrNotFound
		}
		return Entry{}, fmt.Errorf("find audit entry: %w", err)
	}
	return e, nil
}

func (s *Postgres) ListByFamily(ctx context.Context, familyID id.FamilyID, filter Filter) ([]Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM audit_entries
		WHERE family_id = $1
	`
	args := []any{uuid.UUID(familyID)}

	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		query += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if filter.Severity != "" {
		args = append(args, string(filter.Severity))
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if !filter.ActorID.IsNil() {
		args = append(args, uuid.UUID(filter.ActorID))
		query += fmt.Sprintf(" AND actor_id = $%d", len(args))
	}

	args = append(args, filter.limit())
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	return s.list(ctx, query, args...)
}

func (s *Postgres) ListByEntity(ctx context.Context, familyID id.FamilyID, entityType, entityID string) ([]Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM audit_entries
		WHERE family_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY created_at DESC, id DESC
	`
	return s.list(ctx, query, uuid.UUID(familyID), entityType, entityID)
}

func (s *Postgres) list(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e        Entry
		entryID  uuid.UUID
		familyID uuid.UUID
		actorID  uuid.UUID
		severity string
		before   []byte
		after    []byte
	)
	if err := row.Scan(
		&entryID,
		&familyID,
		&e.EntityType,
		&e.EntityID,
		&e.Action,
		&actorID,
		&e.ActorRole,
		&before,
		&after,
		&severity,
		&e.AffectsMoney,
		&e.AffectsStreaks,
		&e.AffectsRules,
		&e.HumanSummary,
		&e.Reason,
		&e.IPAddress,
		&e.DeviceInfo,
		&e.RequestID,
		&e.CreatedAt,
	); err != nil {
		return Entry{}, err
	}
	e.ID = id.AuditEntryID(entryID)
	e.FamilyID = id.FamilyID(familyID)
	e.ActorID = id.UserID(actorID)
	e.Severity = Severity(severity)
	e.BeforeState = json.RawMessage(before)
	e.AfterState = json.RawMessage(after)
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// nullableJSON stores absent snapshots as SQL NULL instead of empty strings,
// which jsonb columns would reject.
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
