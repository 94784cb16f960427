package danger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"famledger/internal/audit"
	"famledger/internal/membership"
	"famledger/internal/permission"
	"famledger/internal/platform/metrics"
	"famledger/internal/policy"
	id "famledger/pkg/domain"
	dErrors "famledger/pkg/domain-errors"
	"famledger/pkg/platform/sentinel"
	"famledger/pkg/requestcontext"
)

// casRetries bounds optimistic-concurrency retries on approve and reject.
const casRetries = 3

// Workflow drives the request lifecycle. All state transitions happen here;
// handlers translate HTTP, the store persists, executors mutate the world.
type Workflow struct {
	store    Store
	perms    *permission.Matrix
	quorum   *QuorumResolver
	registry *Registry
	trail    *audit.Trail
	fanout   *Fanout
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	cooling  time.Duration
}

type Option func(*Workflow)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) { w.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Workflow) { w.metrics = m }
}

func WithNotifications(f *Fanout) Option {
	return func(w *Workflow) { w.fanout = f }
}

// WithCoolingPeriod overrides the default cooling period, for tests and
// staging environments.
func WithCoolingPeriod(d time.Duration) Option {
	return func(w *Workflow) { w.cooling = d }
}

func NewWorkflow(store Store, perms *permission.Matrix, quorum *QuorumResolver, registry *Registry, trail *audit.Trail, opts ...Option) (*Workflow, error) {
	if store == nil {
		return nil, fmt.Errorf("request store is required")
	}
	if perms == nil {
		return nil, fmt.Errorf("permission matrix is required")
	}
	if quorum == nil {
		return nil, fmt.Errorf("quorum resolver is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("executor registry is required")
	}
	if trail == nil {
		return nil, fmt.Errorf("audit trail is required")
	}

	w := &Workflow{
		store:    store,
		perms:    perms,
		quorum:   quorum,
		registry: registry,
		trail:    trail,
		logger:   slog.Default(),
		tracer:   otel.Tracer("famledger/danger"),
		cooling:  policy.CoolingPeriod,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// CreateInput is the caller's description of a new critical action.
type CreateInput struct {
	Kind    ActionKind
	Payload json.RawMessage
	Reason  string
}

// Create opens a new request in PENDING with its approver quorum frozen from
// the family's current active leadership.
//
// Errors: CodeUnknownAction for an unregistered kind, CodeInvalidInput for a
// missing reason or malformed payload, CodeNoApprovers when nobody besides
// the requester can approve.
func (w *Workflow) Create(ctx context.Context, familyID id.FamilyID, input CreateInput) (CriticalActionRequest, error) {
	ctx, span := w.startSpan(ctx, "danger.Create", familyID,
		attribute.String("action.kind", input.Kind.String()))
	defer span.End()

	actor, err := w.perms.RequirePermission(ctx, familyID, permission.PerformDangerAction)
	if err != nil {
		return CriticalActionRequest{}, w.fail(span, err)
	}

	if _, err := w.registry.Lookup(input.Kind); err != nil {
		return CriticalActionRequest{}, w.fail(span, err)
	}
	if input.Reason == "" {
		return CriticalActionRequest{}, w.fail(span, dErrors.New(dErrors.CodeInvalidInput, "a reason is required for critical actions"))
	}
	if _, err := DecodePayload(input.Kind, input.Payload); err != nil {
		return CriticalActionRequest{}, w.fail(span, err)
	}

	slots, err := w.quorum.Resolve(ctx, familyID, actor.UserID)
	if err != nil {
		return CriticalActionRequest{}, w.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve approvers"))
	}
	if len(slots) == 0 {
		return CriticalActionRequest{}, w.fail(span, dErrors.New(dErrors.CodeNoApprovers, "no eligible approvers besides the requester"))
	}

	now := requestcontext.Now(ctx).UTC()
	req := CriticalActionRequest{
		ID:                id.NewActionRequestID(),
		FamilyID:          familyID,
		Kind:              input.Kind,
		Payload:           input.Payload,
		Reason:            input.Reason,
		RequestedBy:       actor.UserID,
		RequestedByRole:   actor.Role,
		Status:            StatusPending,
		RequiredApprovers: slots,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := w.store.Create(ctx, req); err != nil {
		return CriticalActionRequest{}, w.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create request"))
	}

	if w.metrics != nil {
		w.metrics.DangerActionsCreated.WithLabelValues(input.Kind.String()).Inc()
	}
	w.trail.Write(ctx, audit.Record{
		FamilyID:   familyID,
		EntityType: audit.EntityDangerAction,
		EntityID:   req.ID.String(),
		Action:     audit.ActionDangerCreated,
		ActorRole:  string(actor.Role),
		ActorName:  actor.UserID.String(),
		EntityName: input.Kind.String(),
		After:      snapshotOf(req),
		Reason:     input.Reason,
	})
	approvers, err := w.quorum.Approvers(ctx, familyID, actor.UserID)
	if err != nil {
		w.logger.WarnContext(ctx, "failed to resolve notification recipients",
			"request_id", req.ID, "family_id", familyID, "error", err)
	}
	w.notify(ctx, EventRequested, req, actor.UserID, approvers, "Approval needed",
		fmt.Sprintf("%s requested %s, awaiting your approval", actor.Role, req.Kind))

	return req, nil
}

// Approve records one approval. When every required slot is satisfied the
// request flips to APPROVED and the cooling period starts.
//
// An approval counts only if it satisfies a required slot: the approver's
// user ID or exact role must match, and the requester can never approve
// their own request.
func (w *Workflow) Approve(ctx context.Context, familyID id.FamilyID, requestID id.ActionRequestID, reason string) (CriticalActionRequest, error) {
	ctx, span := w.startSpan(ctx, "danger.Approve", familyID,
		attribute.String("request.id", requestID.String()))
	defer span.End()

	actor, err := w.perms.RequirePermission(ctx, familyID, permission.AccessDangerZone)
	if err != nil {
		return CriticalActionRequest{}, w.fail(span, err)
	}
	now := requestcontext.Now(ctx).UTC()

	var before, req CriticalActionRequest
	err = w.withRetry(ctx, familyID, requestID, func(current CriticalActionRequest) (CriticalActionRequest, error) {
		if current.Status != StatusPending {
			return current, dErrors.New(dErrors.CodeInvalidState, "request is already "+string(current.Status))
		}
		if current.RequestedBy == actor.UserID {
			return current, dErrors.New(dErrors.CodePermissionDenied, "cannot approve your own request")
		}
		if current.HasApproved(actor.UserID) {
			return current, dErrors.New(dErrors.CodeAlreadyApproved, "you have already approved this request")
		}
		if !matchesAnySlot(current.RequiredApprovers, actor.UserID, actor.Role) {
			return current, dErrors.New(dErrors.CodePermissionDenied, "you are not a required approver for this request")
		}

		before = current
		current.Approvals = append(current.Approvals, Approval{
			UserID:     actor.UserID,
			Role:       actor.Role,
			Reason:     reason,
			ApprovedAt: now,
		})
		if current.QuorumMet() {
			current.Status = StatusApproved
			coolingEndsAt := now.Add(w.cooling)
			current.CoolingEndsAt = &coolingEndsAt
		}
		current.UpdatedAt = now
		return current, nil
	})
	if err != nil {
		return CriticalActionRequest{}, w.fail(span, err)
	}

	req, err = w.store.FindByID(ctx, familyID, requestID)
	if err != nil {
		return CriticalActionRequest{}, w.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload request"))
	}

	if req.Status == StatusApproved && w.metrics != nil {
		w.metrics.DangerActionsResolved.WithLabelValues("approved").Inc()
	}
	w.trail.Write(ctx, audit.Record{
		FamilyID:   familyID,
		EntityType: audit.EntityDangerAction,
		EntityID:   req.ID.String(),
		Action:     audit.ActionDangerApproved,
		ActorRole:  string(actor.Role),
		ActorName:  actor.UserID.String(),
		EntityName: req.Kind.String(),
		Before:     snapshotOf(before),
		After:      snapshotOf(req),
		Reason:     reason,
	})

	title, message := "Request approved", fmt.Sprintf("%s approved %s", actor.Role, req.Kind)
	if req.Status == StatusApproved {
		title = "Request fully approved"
		message = fmt.Sprintf("%s is fully approved, executable after the cooling period", req.Kind)
	}
	w.notify(ctx, EventApproved, req, actor.UserID, []id.UserID{req.RequestedBy}, title, message)

	return req, nil
}

// Reject terminates a pending request. Rejection is unilateral: one
// rejection ends the request no matter how many partial approvals it had.
// Once the quorum completes the request leaves PENDING and can no longer be
// rejected; transitions are monotonic.
func (w *Workflow) Reject(ctx context.Context, familyID id.FamilyID, requestID id.ActionRequestID, reason string) (CriticalActionRequest, error) {
	ctx, span := w.startSpan(ctx, "danger.Reject", familyID,
		attribute.String("request.id", requestID.String()))
	defer span.End()

	actor, err := w.perms.RequirePermission(ctx, familyID, permission.AccessDangerZone)
	if err != nil {
		return CriticalActionRequest{}, w.fail(span, err)
	}
	now := requestcontext.Now(ctx).UTC()

	var before CriticalActionRequest
	err = w.withRetry(ctx, familyID, requestID, func(current CriticalActionRequest) (CriticalActionRequest, error) {
		if current.Status != StatusPending {
			return current, dErrors.New(dErrors.CodeInvalidState, "request is already "+string(current.Status))
		}

		before = current
		rejectedBy := actor.UserID
		current.Status = StatusRejected
		current.RejectedBy = &rejectedBy
		current.RejectionReason = reason
		current.UpdatedAt = now
		return current, nil
	})
	if err != nil {
		return CriticalActionRequest{}, w.fail(span, err)
	}

	req, err := w.store.FindByID(ctx, familyID, requestID)
	if err != nil {
		return CriticalActionRequest{}, w.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload request"))
	}

	if w.metrics != nil {
		w.metrics.DangerActionsResolved.WithLabelValues("rejected").Inc()
	}
	w.trail.Write(ctx, audit.Record{
		FamilyID:   familyID,
		EntityType: audit.EntityDangerAction,
		EntityID:   req.ID.String(),
		Action:     audit.ActionDangerRejected,
		ActorRole:  string(actor.Role),
		ActorName:  actor.UserID.String(),
		EntityName: req.Kind.String(),
		Before:     snapshotOf(before),
		After:      snapshotOf(req),
		Reason:     reason,
	})
	w.notify(ctx, EventRejected, req, actor.UserID, []id.UserID{req.RequestedBy}, "Request rejected",
		fmt.Sprintf("%s rejected %s", actor.Role, req.Kind))

	return req, nil
}

// Execute runs the approved action once its cooling period has elapsed. The
// EXECUTED flip is claimed atomically so concurrent executors cannot run the
// action twice; a failed executor releases the claim back to APPROVED.
// Executing an already-executed request is an idempotent success.
//
// A context without an actor is the trusted scheduler path: the member
// permission check is skipped and the execution is recorded as SYSTEM. The
// HTTP surface always carries an actor, so that path is only reachable from
// in-process triggers.
func (w *Workflow) Execute(ctx context.Context, familyID id.FamilyID, requestID id.ActionRequestID) (CriticalActionRequest, error) {
	ctx, span := w.startSpan(ctx, "danger.Execute", familyID,
		attribute.String("request.id", requestID.String()))
	defer span.End()

	var actor permission.Actor
	if !requestcontext.ActorID(ctx).IsNil() {
		var err error
		actor, err = w.perms.RequirePermission(ctx, familyID, permission.AccessDangerZone)
		if err != nil {
			return CriticalActionRequest{}, w.fail(span, err)
		}
	}
	now := requestcontext.Now(ctx).UTC()

	current, err := w.store.FindByID(ctx, familyID, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return CriticalActionRequest{}, w.fail(span, dErrors.New(dErrors.CodeNotFound, "request not found"))
		}
		return CriticalActionRequest{}, w.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request"))
	}
	if current.Status == StatusExecuted {
		return current, nil
	}
	if err := executability(current, now); err != nil {
		return CriticalActionRequest{}, w.fail(span, err)
	}

	executor, err := w.registry.Lookup(current.Kind)
	if err != nil {
		return CriticalActionRequest{}, w.fail(span, err)
	}

	var claimed CriticalActionRequest
	for attempt := 0; ; attempt++ {
		claimed, err = w.store.ClaimExecution(ctx, familyID, requestID, now, executorIdentity(actor))
		if err == nil {
			break
		}
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return CriticalActionRequest{}, w.fail(span, dErrors.New(dErrors.CodeNotFound, "request not found"))
		case errors.Is(err, sentinel.ErrInvalidState):
			// Lost a race since the read above: re-diagnose from fresh state.
			fresh, findErr := w.store.FindByID(ctx, familyID, requestID)
			if findErr != nil {
				return CriticalActionRequest{}, w.fail(span, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to reload request"))
			}
			if fresh.Status == StatusExecuted {
				return fresh, nil
			}
			if execErr := executability(fresh, now); execErr != nil {
				return CriticalActionRequest{}, w.fail(span, execErr)
			}
			// A competitor claimed, failed, and released back to APPROVED;
			// the request is claimable again.
			if attempt+1 < casRetries {
				continue
			}
			return CriticalActionRequest{}, w.fail(span, dErrors.New(dErrors.CodeInternal, "request is being executed concurrently, retry"))
		default:
			return CriticalActionRequest{}, w.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim execution"))
		}
	}

	if err := executor.Execute(ctx, familyID, claimed.Payload); err != nil {
		if releaseErr := w.store.ReleaseExecution(ctx, familyID, requestID); releaseErr != nil {
			w.logger.ErrorContext(ctx, "failed to release execution claim",
				"request_id", requestID, "family_id", familyID, "error", releaseErr)
		}
		return CriticalActionRequest{}, w.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "action execution failed"))
	}

	if w.metrics != nil {
		w.metrics.DangerActionsExecuted.Inc()
	}
	actorRole := string(actor.Role)
	if actorRole == "" {
		actorRole = "SYSTEM"
	}
	w.trail.Write(ctx, audit.Record{
		FamilyID:   familyID,
		EntityType: audit.EntityDangerAction,
		EntityID:   claimed.ID.String(),
		Action:     audit.ActionDangerExecuted,
		ActorRole:  actorRole,
		ActorName:  executorIdentity(actor),
		EntityName: claimed.Kind.String(),
		Before:     snapshotOf(current),
		After:      snapshotOf(claimed),
		Reason:     claimed.Reason,
	})
	w.notify(ctx, EventExecuted, claimed, actor.UserID, []id.UserID{claimed.RequestedBy}, "Request executed",
		fmt.Sprintf("%s was executed", claimed.Kind))

	return claimed, nil
}

// Get returns one request. Any active member may view the family's requests.
func (w *Workflow) Get(ctx context.Context, familyID id.FamilyID, requestID id.ActionRequestID) (CriticalActionRequest, error) {
	if _, err := w.perms.RequirePermission(ctx, familyID, permission.PerformDangerAction); err != nil {
		return CriticalActionRequest{}, err
	}

	req, err := w.store.FindByID(ctx, familyID, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return CriticalActionRequest{}, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return CriticalActionRequest{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
	}
	return req, nil
}

// List returns the family's requests newest-first, optionally filtered by
// status.
func (w *Workflow) List(ctx context.Context, familyID id.FamilyID, status Status) ([]CriticalActionRequest, error) {
	if _, err := w.perms.RequirePermission(ctx, familyID, permission.PerformDangerAction); err != nil {
		return nil, err
	}

	requests, err := w.store.ListByFamily(ctx, familyID, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
	}
	return requests, nil
}

// withRetry applies mutate under optimistic concurrency, re-reading and
// retrying on version conflicts.
func (w *Workflow) withRetry(ctx context.Context, familyID id.FamilyID, requestID id.ActionRequestID, mutate func(CriticalActionRequest) (CriticalActionRequest, error)) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		current, err := w.store.FindByID(ctx, familyID, requestID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "request not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
		}

		next, err := mutate(current)
		if err != nil {
			return err
		}
		next.Version = current.Version + 1

		err = w.store.Update(ctx, next, current.Version)
		if err == nil {
			return nil
		}
		if errors.Is(err, sentinel.ErrVersionConflict) {
			continue
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update request")
	}
	return dErrors.New(dErrors.CodeInternal, "request is being modified concurrently, retry")
}

func (w *Workflow) notify(ctx context.Context, event string, req CriticalActionRequest, actorID id.UserID, recipients []id.UserID, title, message string) {
	if w.fanout == nil || len(recipients) == 0 {
		return
	}
	priority := PriorityNormal
	if c := audit.Classify(req.Kind.String()); c.Severity == audit.SeverityHigh || c.Severity == audit.SeverityCritical {
		priority = PriorityHigh
	}
	w.fanout.Dispatch(ctx, recipients, Notification{
		Event:     event,
		FamilyID:  req.FamilyID,
		RequestID: req.ID,
		Kind:      req.Kind,
		ActorID:   actorID,
		Title:     title,
		Message:   message,
		Priority:  priority,
		ActionURL: fmt.Sprintf("/families/%s/danger-actions/%s", req.FamilyID, req.ID),
	})
}

func (w *Workflow) startSpan(ctx context.Context, name string, familyID id.FamilyID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("family.id", familyID.String()))
	return w.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (w *Workflow) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, dErrors.MessageOf(err))
	return err
}

// executability explains why a non-executed request cannot run right now.
func executability(req CriticalActionRequest, now time.Time) error {
	switch req.Status {
	case StatusPending:
		return dErrors.New(dErrors.CodeInvalidState, "request is not yet fully approved")
	case StatusRejected:
		return dErrors.New(dErrors.CodeInvalidState, "request was rejected")
	case StatusApproved:
		if req.CoolingActive(now) {
			remaining := req.CoolingEndsAt.Sub(now).Round(time.Minute)
			return dErrors.New(dErrors.CodeCoolingActive,
				fmt.Sprintf("cooling period active, executable in %s", remaining))
		}
		return nil
	default:
		return dErrors.New(dErrors.CodeInvalidState, "request is not executable")
	}
}

func matchesAnySlot(slots []ApproverRef, userID id.UserID, role membership.Role) bool {
	for _, slot := range slots {
		if slot.Matches(userID, role) {
			return true
		}
	}
	return false
}

func executorIdentity(actor permission.Actor) string {
	if actor.UserID.IsNil() {
		return "SYSTEM"
	}
	return actor.UserID.String()
}

// snapshotOf projects the request into the audited state shape. Snapshots
// feed the diff engine, so field names here are what members see in the log.
func snapshotOf(req CriticalActionRequest) map[string]any {
	snap := map[string]any{
		"status":           string(req.Status),
		"kind":             req.Kind.String(),
		"reason":           req.Reason,
		"approvalsGranted": len(req.Approvals),
		"approvalsNeeded":  len(req.RequiredApprovers),
	}
	if req.CoolingEndsAt != nil {
		snap["coolingEndsAt"] = req.CoolingEndsAt.UTC().Format(time.RFC3339)
	}
	if req.ExecutedAt != nil {
		snap["executedAt"] = req.ExecutedAt.UTC().Format(time.RFC3339)
		snap["executedBy"] = req.ExecutedBy
	}
	if req.RejectedBy != nil {
		snap["rejectionReason"] = req.RejectionReason
	}
	return snap
}
