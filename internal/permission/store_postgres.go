package permission

import (
	"context"
	"database/sql"
	"fmt"

	"famledger/internal/membership"
	txcontext "famledger/pkg/platform/tx"
)

// Postgres reads role grants from the permission_grants table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Postgres) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) EnabledPermissions(ctx context.Context, role membership.Role) (map[Permission]bool, error) {
	query := `
		SELECT permission
		FROM permission_grants
		WHERE role = $1 AND enabled
	`
	rows, err := s.querier(ctx).QueryContext(ctx, query, string(role))
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	enabled := make(map[Permission]bool)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		enabled[Permission(p)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return enabled, nil
}

func (s *Postgres) Seed(ctx context.Context, grants map[membership.Role][]Permission) error {
	query := `
		INSERT INTO permission_grants (role, permission, enabled)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (role, permission) DO UPDATE SET enabled = TRUE
	`
	for role, perms := range grants {
		for _, p := range perms {
			if _, err := s.querier(ctx).ExecContext(ctx, query, string(role), string(p)); err != nil {
				return fmt.Errorf("seed grant %s/%s: %w", role, p, err)
			}
		}
	}
	return nil
}
