package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "famledger/pkg/domain"
	"famledger/pkg/platform/sentinel"
)

// Postgres reads memberships from the family_members table maintained by the
// identity/membership provider.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Find(ctx context.Context, userID id.UserID, familyID id.FamilyID) (Membership, error) {
	query := `
		SELECT user_id, family_id, role, status, joined_at
		FROM family_members
		WHERE user_id = $1 AND family_id = $2
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(userID), uuid.UUID(familyID))

	m, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Membership{}, sentinel.ErrNotFound
		}
		return Membership{}, fmt.Errorf("find membership: %w", err)
	}
	return m, nil
}

func (s *Postgres) ListActiveByRoles(ctx context.Context, familyID id.FamilyID, roles []Role) ([]Membership, error) {
	roleNames := make([]string, len(roles))
	for i, r := range roles {
		roleNames[i] = string(r)
	}

	query := `
		SELECT user_id, family_id, role, status, joined_at
		FROM family_members
		WHERE family_id = $1 AND status = $2 AND role = ANY($3)
		ORDER BY joined_at, user_id
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(familyID), string(StatusActive), pq.Array(roleNames))
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var members []Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return members, nil
}

func (s *Postgres) Upsert(ctx context.Context, m Membership) error {
	query := `
		INSERT INTO family_members (user_id, family_id, role, status, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, family_id)
		DO UPDATE SET role = EXCLUDED.role, status = EXCLUDED.status
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(m.UserID),
		uuid.UUID(m.FamilyID),
		string(m.Role),
		string(m.Status),
		m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMembership(row rowScanner) (Membership, error) {
	var (
		m        Membership
		userID   uuid.UUID
		familyID uuid.UUID
		role     string
		status   string
	)
	if err := row.Scan(&userID, &familyID, &role, &status, &m.JoinedAt); err != nil {
		return Membership{}, err
	}
	m.UserID = id.UserID(userID)
	m.FamilyID = id.FamilyID(familyID)
	m.Role = Role(role)
	m.Status = Status(status)
	return m, nil
}
