package danger

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	id "famledger/pkg/domain"
)

// Lifecycle events fanned out to notifiers.
const (
	EventRequested = "requested"
	EventApproved  = "approved"
	EventRejected  = "rejected"
	EventExecuted  = "executed"
)

// Notification priorities, mirrored in the delivery channels' own urgency
// tiers.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Notification is one lifecycle event of a request, delivered per recipient
// so approvers learn about pending requests without polling.
type Notification struct {
	Event     string
	FamilyID  id.FamilyID
	RequestID id.ActionRequestID
	Kind      ActionKind
	ActorID   id.UserID
	Title     string
	Message   string
	Priority  string
	ActionURL string
}

// Notifier delivers one notification to one recipient over one channel.
type Notifier interface {
	Notify(ctx context.Context, recipient id.UserID, n Notification) error
}

const notifyTimeout = 5 * time.Second

// Fanout delivers a notification to every recipient on every channel
// concurrently. Delivery is best-effort: failures are logged, never
// returned, and a slow channel cannot hold the workflow past the timeout.
type Fanout struct {
	notifiers []Notifier
	logger    *slog.Logger
}

func NewFanout(logger *slog.Logger, notifiers ...Notifier) *Fanout {
	return &Fanout{notifiers: notifiers, logger: logger}
}

func (f *Fanout) Dispatch(ctx context.Context, recipients []id.UserID, n Notification) {
	if len(f.notifiers) == 0 || len(recipients) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for _, notifier := range f.notifiers {
		notifier := notifier
		for _, recipient := range recipients {
			recipient := recipient
			g.Go(func() error {
				if err := notifier.Notify(ctx, recipient, n); err != nil {
					f.logger.ErrorContext(ctx, "notification delivery failed",
						"event", n.Event,
						"recipient", recipient,
						"request_id", n.RequestID,
						"family_id", n.FamilyID,
						"error", err,
					)
				}
				return nil
			})
		}
	}
	_ = g.Wait()
}

// LogNotifier writes notifications to the structured log. It is the default
// channel in dev and the fallback when no real channel is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, recipient id.UserID, n Notification) error {
	l.logger.InfoContext(ctx, "danger action notification",
		"event", n.Event,
		"recipient", recipient,
		"request_id", n.RequestID,
		"family_id", n.FamilyID,
		"kind", n.Kind,
		"actor_id", n.ActorID,
		"priority", n.Priority,
		"title", n.Title,
		"message", n.Message,
	)
	return nil
}
