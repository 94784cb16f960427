// Package audit implements the append-only audit trail: classification,
// snapshot capture, diff-on-read, human summaries, and export rendering.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"famledger/internal/platform/metrics"
	id "famledger/pkg/domain"
	dErrors "famledger/pkg/domain-errors"
	"famledger/pkg/platform/sentinel"
	"famledger/pkg/requestcontext"
)

// Publisher mirrors committed entries to an external stream. Implementations
// must be fire-and-forget: they may not block or fail the write path.
type Publisher interface {
	Publish(ctx context.Context, entry Entry)
}

// Trail is the audit write/read service. Writes are fail-soft: a failed
// append is logged and counted but never propagates to the caller, so an
// audit outage cannot take user-facing operations down with it.
type Trail struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Trail)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Trail) { t.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Trail) { t.metrics = m }
}

// WithPublisher attaches a stream mirror for committed entries.
func WithPublisher(p Publisher) Option {
	return func(t *Trail) { t.publisher = p }
}

func NewTrail(store Store, opts ...Option) (*Trail, error) {
	if store == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	t := &Trail{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Record describes one auditable mutation. Before and After are marshaled
// verbatim; pass json.RawMessage to record a snapshot you already hold.
type Record struct {
	FamilyID   id.FamilyID
	EntityType string
	EntityID   string
	Action     string

	ActorRole string
	// ActorName is the display name used in the human summary. The actor's
	// ID comes from request context.
	ActorName  string
	EntityName string

	Before any
	After  any

	Reason string
	// Detail feeds action-specific summary fragments ("amount", "target").
	Detail map[string]string
}

// Write classifies, summarizes, and appends an entry for the record,
// capturing actor identity and client metadata from the request context.
// It never returns an error; failures are logged and counted.
func (t *Trail) Write(ctx context.Context, rec Record) {
	entry := t.build(ctx, rec)

	if err := t.store.Append(ctx, entry); err != nil {
		if t.metrics != nil {
			t.metrics.AuditWriteFailures.Inc()
		}
		t.logger.ErrorContext(ctx, "audit write failed",
			"family_id", entry.FamilyID,
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
			"error", err,
		)
		return
	}

	if t.metrics != nil {
		t.metrics.AuditEntriesWritten.Inc()
	}
	if t.publisher != nil {
		t.publisher.Publish(ctx, entry)
	}
}

func (t *Trail) build(ctx context.Context, rec Record) Entry {
	class := Classify(rec.Action)
	summary := Summarize(rec.Action, TemplateContext{
		Actor:  rec.ActorName,
		Role:   rec.ActorRole,
		Action: rec.Action,
		Entity: rec.EntityName,
		Reason: rec.Reason,
		Detail: rec.Detail,
	})

	return Entry{
		ID:         id.NewAuditEntryID(),
		FamilyID:   rec.FamilyID,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Action:     rec.Action,
		ActorID:    requestcontext.ActorID(ctx),
		ActorRole:  rec.ActorRole,

		BeforeState: t.snapshot(ctx, rec, rec.Before),
		AfterState:  t.snapshot(ctx, rec, rec.After),

		Severity:       class.Severity,
		AffectsMoney:   class.AffectsMoney,
		AffectsStreaks: class.AffectsStreaks,
		AffectsRules:   class.AffectsRules,
		HumanSummary:   summary,

		Reason:     rec.Reason,
		IPAddress:  requestcontext.ClientIP(ctx),
		DeviceInfo: requestcontext.DeviceInfo(ctx),
		RequestID:  requestcontext.RequestID(ctx),
		CreatedAt:  requestcontext.Now(ctx).UTC(),
	}
}

// snapshot marshals a state capture, degrading to nothing rather than
// failing the write when a caller hands us an unmarshalable value.
func (t *Trail) snapshot(ctx context.Context, rec Record, v any) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		t.logger.WarnContext(ctx, "audit snapshot not serializable",
			"family_id", rec.FamilyID, "action", rec.Action, "error", err)
		return nil
	}
	return raw
}

// Find returns one entry with its rendered diff.
func (t *Trail) Find(ctx context.Context, familyID id.FamilyID, entryID id.AuditEntryID) (Entry, error) {
	entry, err := t.store.FindByID(ctx, familyID, entryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Entry{}, dErrors.New(dErrors.CodeNotFound, "audit entry not found")
		}
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit entry")
	}
	return entry, nil
}

// List returns a page of the family trail, newest-first.
func (t *Trail) List(ctx context.Context, familyID id.FamilyID, filter Filter) ([]Entry, error) {
	entries, err := t.store.ListByFamily(ctx, familyID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit entries")
	}
	return entries, nil
}

// EntityHistory returns the full trail of one entity, newest-first.
func (t *Trail) EntityHistory(ctx context.Context, familyID id.FamilyID, entityType, entityID string) ([]Entry, error) {
	entries, err := t.store.ListByEntity(ctx, familyID, entityType, entityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entity history")
	}
	return entries, nil
}
