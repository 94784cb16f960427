// Package stream mirrors committed audit entries onto a Kafka topic for
// downstream consumers (analytics, long-term archival). The mirror is
// best-effort: the durable trail lives in the store, never here.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"famledger/internal/audit"
)

// Kafka publishes entries with the family ID as the record key, so each
// family's trail stays ordered within a partition.
type Kafka struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func New(brokers []string, topic string, logger *slog.Logger) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &Kafka{client: client, topic: topic, logger: logger}, nil
}

// message is the wire shape of a mirrored entry. Snapshots travel verbatim.
type message struct {
	ID             string          `json:"id"`
	FamilyID       string          `json:"familyId"`
	EntityType     string          `json:"entityType"`
	EntityID       string          `json:"entityId"`
	Action         string          `json:"action"`
	ActorID        string          `json:"actorId"`
	ActorRole      string          `json:"actorRole"`
	BeforeState    json.RawMessage `json:"beforeState,omitempty"`
	AfterState     json.RawMessage `json:"afterState,omitempty"`
	Severity       string          `json:"severity"`
	AffectsMoney   bool            `json:"affectsMoney"`
	AffectsStreaks bool            `json:"affectsStreaks"`
	AffectsRules   bool            `json:"affectsRules"`
	HumanSummary   string          `json:"humanSummary"`
	Reason         string          `json:"reason,omitempty"`
	RequestID      string          `json:"requestId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Publish enqueues the entry asynchronously. Delivery failures are logged;
// they never surface to the audit write path.
func (k *Kafka) Publish(ctx context.Context, entry audit.Entry) {
	payload, err := json.Marshal(message{
		ID:             entry.ID.String(),
		FamilyID:       entry.FamilyID.String(),
		EntityType:     entry.EntityType,
		EntityID:       entry.EntityID,
		Action:         entry.Action,
		ActorID:        entry.ActorID.String(),
		ActorRole:      entry.ActorRole,
		BeforeState:    entry.BeforeState,
		AfterState:     entry.AfterState,
		Severity:       string(entry.Severity),
		AffectsMoney:   entry.AffectsMoney,
		AffectsStreaks: entry.AffectsStreaks,
		AffectsRules:   entry.AffectsRules,
		HumanSummary:   entry.HumanSummary,
		Reason:         entry.Reason,
		RequestID:      entry.RequestID,
		CreatedAt:      entry.CreatedAt,
	})
	if err != nil {
		k.logger.ErrorContext(ctx, "audit stream marshal failed", "entry_id", entry.ID, "error", err)
		return
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(entry.FamilyID.String()),
		Value: payload,
	}
	k.client.Produce(context.WithoutCancel(ctx), record, func(_ *kgo.Record, err error) {
		if err != nil {
			k.logger.Error("audit stream publish failed", "entry_id", entry.ID.String(), "error", err)
		}
	})
}

// Close flushes pending records and releases the client.
func (k *Kafka) Close(ctx context.Context) error {
	if err := k.client.Flush(ctx); err != nil {
		return err
	}
	k.client.Close()
	return nil
}
