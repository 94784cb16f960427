package danger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"famledger/internal/membership"
	id "famledger/pkg/domain"
	"famledger/pkg/platform/sentinel"
	"famledger/pkg/platform/tx"
)

// Postgres persists requests in the danger_action_requests table. Approver
// slots and approvals are jsonb columns: they are always read and written as
// a unit with the request, never queried independently.
type Postgres struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *Postgres {
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

type approverRefRow struct {
	UserID *string `json:"userId,omitempty"`
	Role   *string `json:"role,omitempty"`
}

type approvalRow struct {
	UserID     string    `json:"userId"`
	Role       string    `json:"role"`
	Reason     string    `json:"reason,omitempty"`
	ApprovedAt time.Time `json:"approvedAt"`
}

const requestColumns = `
	id, family_id, kind, payload, reason,
	requested_by, requested_by_role, status,
	required_approvers, approvals,
	rejected_by, rejection_reason,
	cooling_ends_at, executed_at, executed_by,
	version, created_at, updated_at
`

func (s *Postgres) Create(ctx context.Context, req CriticalActionRequest) error {
	refs, approvals, err := marshalQuorum(req)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO danger_action_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(req.ID),
		uuid.UUID(req.FamilyID),
		string(req.Kind),
		nullableBytes(req.Payload),
		req.Reason,
		uuid.UUID(req.RequestedBy),
		string(req.RequestedByRole),
		string(req.Status),
		refs,
		approvals,
		nullableUUID(req.RejectedBy),
		req.RejectionReason,
		req.CoolingEndsAt,
		req.ExecutedAt,
		req.ExecutedBy,
		req.Version,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("create danger action request: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, familyID id.FamilyID, requestID id.ActionRequestID) (CriticalActionRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM danger_action_requests
		WHERE family_id = $1 AND id = $2
	`
	row := s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(familyID), uuid.UUID(requestID))

	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CriticalActionRequest{}, sentinel.ErrNotFound
		}
		return CriticalActionRequest{}, fmt.Errorf("find danger action request: %w", err)
	}
	return req, nil
}

func (s *Postgres) ListByFamily(ctx context.Context, familyID id.FamilyID, status Status) ([]CriticalActionRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM danger_action_requests
		WHERE family_id = $1
	`
	args := []any{uuid.UUID(familyID)}
	if status != "" {
		args = append(args, string(status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list danger action requests: %w", err)
	}
	defer rows.Close()

	var requests []CriticalActionRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan danger action request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate danger action requests: %w", err)
	}
	return requests, nil
}

func (s *Postgres) Update(ctx context.Context, req CriticalActionRequest, expectedVersion int) error {
	refs, approvals, err := marshalQuorum(req)
	if err != nil {
		return err
	}

	query := `
		UPDATE danger_action_requests
		SET status = $1, approvals = $2, rejected_by = $3, rejection_reason = $4,
		    cooling_ends_at = $5, executed_at = $6, executed_by = $7,
		    version = $8, updated_at = $9, required_approvers = $10
		WHERE id = $11 AND family_id = $12 AND version = $13
	`
	res, err := s.conn(ctx).ExecContext(ctx, query,
		string(req.Status),
		approvals,
		nullableUUID(req.RejectedBy),
		req.RejectionReason,
		req.CoolingEndsAt,
		req.ExecutedAt,
		req.ExecutedBy,
		req.Version,
		req.UpdatedAt,
		refs,
		uuid.UUID(req.ID),
		uuid.UUID(req.FamilyID),
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update danger action request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update danger action request: %w", err)
	}
	if affected == 0 {
		// Distinguish a stale version from a missing row.
		if _, findErr := s.FindByID(ctx, req.FamilyID, req.ID); findErr != nil {
			return findErr
		}
		return sentinel.ErrVersionConflict
	}
	return nil
}

func (s *Postgres) ClaimExecution(ctx context.Context, familyID id.FamilyID, requestID id.ActionRequestID, now time.Time, executedBy string) (CriticalActionRequest, error) {
	query := `
		UPDATE danger_action_requests
		SET status = $1, executed_at = $2, executed_by = $3,
		    version = version + 1, updated_at = $2
		WHERE id = $4 AND family_id = $5
		  AND status = $6
		  AND (cooling_ends_at IS NULL OR cooling_ends_at <= $2)
		RETURNING ` + requestColumns + `
	`
	row := s.conn(ctx).QueryRowContext(ctx, query,
		string(StatusExecuted), now, executedBy,
		uuid.UUID(requestID), uuid.UUID(familyID),
		string(StatusApproved),
	)

	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either the row does not exist or it is not claimable.
			if _, findErr := s.FindByID(ctx, familyID, requestID); findErr != nil {
				return CriticalActionRequest{}, findErr
			}
			return CriticalActionRequest{}, sentinel.ErrInvalidState
		}
		return CriticalActionRequest{}, fmt.Errorf("claim execution: %w", err)
	}
	return req, nil
}

func (s *Postgres) ReleaseExecution(ctx context.Context, familyID id.FamilyID, requestID id.ActionRequestID) error {
	query := `
		UPDATE danger_action_requests
		SET status = $1, executed_at = NULL, executed_by = '', version = version + 1
		WHERE id = $2 AND family_id = $3 AND status = $4
	`
	res, err := s.conn(ctx).ExecContext(ctx, query,
		string(StatusApproved),
		uuid.UUID(requestID), uuid.UUID(familyID),
		string(StatusExecuted),
	)
	if err != nil {
		return fmt.Errorf("release execution: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release execution: %w", err)
	}
	if affected == 0 {
		if _, findErr := s.FindByID(ctx, familyID, requestID); findErr != nil {
			return findErr
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func marshalQuorum(req CriticalActionRequest) ([]byte, []byte, error) {
	refRows := make([]approverRefRow, len(req.RequiredApprovers))
	for i, ref := range req.RequiredApprovers {
		if ref.UserID != nil {
			v := ref.UserID.String()
			refRows[i].UserID = &v
		}
		if ref.Role != nil {
			v := string(*ref.Role)
			refRows[i].Role = &v
		}
	}
	refs, err := json.Marshal(refRows)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal approver slots: %w", err)
	}

	approvalRows := make([]approvalRow, len(req.Approvals))
	for i, a := range req.Approvals {
		approvalRows[i] = approvalRow{
			UserID:     a.UserID.String(),
			Role:       string(a.Role),
			Reason:     a.Reason,
			ApprovedAt: a.ApprovedAt,
		}
	}
	approvals, err := json.Marshal(approvalRows)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal approvals: %w", err)
	}
	return refs, approvals, nil
}

func scanRequest(row rowScanner) (CriticalActionRequest, error) {
	var (
		req             CriticalActionRequest
		requestID       uuid.UUID
		familyID        uuid.UUID
		kind            string
		payload         []byte
		requestedBy     uuid.UUID
		requestedByRole string
		status          string
		refs            []byte
		approvals       []byte
		rejectedBy      uuid.NullUUID
		executedBy      sql.NullString
	)
	if err := row.Scan(
		&requestID,
		&familyID,
		&kind,
		&payload,
		&req.Reason,
		&requestedBy,
		&requestedByRole,
		&status,
		&refs,
		&approvals,
		&rejectedBy,
		&req.RejectionReason,
		&req.CoolingEndsAt,
		&req.ExecutedAt,
		&executedBy,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		return CriticalActionRequest{}, err
	}

	req.ID = id.ActionRequestID(requestID)
	req.FamilyID = id.FamilyID(familyID)
	req.Kind = ActionKind(kind)
	req.Payload = json.RawMessage(payload)
	req.RequestedBy = id.UserID(requestedBy)
	req.RequestedByRole = membership.Role(requestedByRole)
	req.Status = Status(status)
	req.ExecutedBy = executedBy.String
	if rejectedBy.Valid {
		userID := id.UserID(rejectedBy.UUID)
		req.RejectedBy = &userID
	}

	var refRows []approverRefRow
	if err := json.Unmarshal(refs, &refRows); err != nil {
		return CriticalActionRequest{}, fmt.Errorf("unmarshal approver slots: %w", err)
	}
	req.RequiredApprovers = make([]ApproverRef, len(refRows))
	for i, r := range refRows {
		if r.UserID != nil {
			userID, err := id.ParseUserID(*r.UserID)
			if err != nil {
				return CriticalActionRequest{}, fmt.Errorf("unmarshal approver slot: %w", err)
			}
			req.RequiredApprovers[i].UserID = &userID
		}
		if r.Role != nil {
			role := membership.Role(*r.Role)
			req.RequiredApprovers[i].Role = &role
		}
	}

	var approvalRows []approvalRow
	if err := json.Unmarshal(approvals, &approvalRows); err != nil {
		return CriticalActionRequest{}, fmt.Errorf("unmarshal approvals: %w", err)
	}
	req.Approvals = make([]Approval, len(approvalRows))
	for i, a := range approvalRows {
		userID, err := id.ParseUserID(a.UserID)
		if err != nil {
			return CriticalActionRequest{}, fmt.Errorf("unmarshal approval: %w", err)
		}
		req.Approvals[i] = Approval{
			UserID:     userID,
			Role:       membership.Role(a.Role),
			Reason:     a.Reason,
			ApprovedAt: a.ApprovedAt,
		}
	}
	return req, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullableBytes(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func nullableUUID(userID *id.UserID) any {
	if userID == nil {
		return nil
	}
	return uuid.UUID(*userID)
}

func isUniqueViolation(err error) bool {
	type coder interface{ SQLState() string }
	var c coder
	return errors.As(err, &c) && c.SQLState() == "23505"
}
