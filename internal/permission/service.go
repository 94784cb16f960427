// Package permission implements role-based access control with
// active-membership gating. Permissions attach to roles; a member whose
// status is not ACTIVE holds no permissions regardless of role.
package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"famledger/internal/membership"
	"famledger/internal/platform/metrics"
	id "famledger/pkg/domain"
	dErrors "famledger/pkg/domain-errors"
	"famledger/pkg/platform/sentinel"
	"famledger/pkg/requestcontext"
)

// Matrix answers authorization questions. It is a pure read over the
// membership store and the grant table; it never mutates either.
type Matrix struct {
	members membership.Store
	grants  GrantStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Matrix)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Matrix) { m.logger = logger }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Matrix) { m.metrics = mt }
}

func New(members membership.Store, grants GrantStore, opts ...Option) (*Matrix, error) {
	if members == nil {
		return nil, fmt.Errorf("membership store is required")
	}
	if grants == nil {
		return nil, fmt.Errorf("grant store is required")
	}

	m := &Matrix{
		members: members,
		grants:  grants,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// HasPermission reports whether the user may perform the given action within
// the family. Infrastructure failures and missing memberships both resolve
// to false; authorization fails safe.
func (m *Matrix) HasPermission(ctx context.Context, userID id.UserID, familyID id.FamilyID, perm Permission) bool {
	if userID.IsNil() {
		return false
	}

	member, err := m.members.Find(ctx, userID, familyID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			m.logger.ErrorContext(ctx, "membership lookup failed", "user_id", userID, "family_id", familyID, "error", err)
		}
		return false
	}
	if !member.IsActive() {
		return false
	}

	enabled, err := m.grants.EnabledPermissions(ctx, member.Role)
	if err != nil {
		m.logger.ErrorContext(ctx, "grant lookup failed", "role", member.Role, "error", err)
		return false
	}
	return enabled[perm]
}

// RequirePermission resolves the current actor from request context, checks
// active membership in the family, and checks the grant. On success it
// returns the acting identity for audit capture.
//
// Errors: CodeUnauthorized when no actor is present, CodeNotFound when the
// actor is not a member of the family, CodePermissionDenied when the
// membership is inactive or the role lacks the grant.
func (m *Matrix) RequirePermission(ctx context.Context, familyID id.FamilyID, perm Permission) (Actor, error) {
	actorID := requestcontext.ActorID(ctx)
	if actorID.IsNil() {
		return Actor{}, dErrors.New(dErrors.CodeUnauthorized, "no authenticated actor")
	}

	member, err := m.members.Find(ctx, actorID, familyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Actor{}, dErrors.New(dErrors.CodeNotFound, "not a member of this family")
		}
		return Actor{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve membership")
	}

	if !member.IsActive() {
		m.denied()
		return Actor{}, dErrors.New(dErrors.CodePermissionDenied, "membership is not active")
	}

	enabled, err := m.grants.EnabledPermissions(ctx, member.Role)
	if err != nil {
		return Actor{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load permission grants")
	}
	if !enabled[perm] {
		m.denied()
		return Actor{}, dErrors.New(dErrors.CodePermissionDenied, "missing permission "+perm.String())
	}

	return Actor{UserID: actorID, Role: member.Role}, nil
}

// UserPermissions returns the full enabled permission set for UI gating,
// in stable order. It returns the empty set, never an error, for
// unauthenticated or invalid input.
func (m *Matrix) UserPermissions(ctx context.Context, userID id.UserID, familyID id.FamilyID) []Permission {
	if userID.IsNil() || familyID.IsNil() {
		return []Permission{}
	}

	member, err := m.members.Find(ctx, userID, familyID)
	if err != nil || !member.IsActive() {
		return []Permission{}
	}

	enabled, err := m.grants.EnabledPermissions(ctx, member.Role)
	if err != nil {
		m.logger.ErrorContext(ctx, "grant lookup failed", "role", member.Role, "error", err)
		return []Permission{}
	}

	perms := make([]Permission, 0, len(enabled))
	for p := range enabled {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

func (m *Matrix) denied() {
	if m.metrics != nil {
		m.metrics.PermissionDenials.Inc()
	}
}
