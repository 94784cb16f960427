package handler

import (
	"time"

	"famledger/internal/audit"
)

// EntryResponse is the API shape of one audit entry. The field changes are
// rendered server-side from the stored snapshots so every client shows the
// same diff.
type EntryResponse struct {
	ID           string              `json:"id"`
	FamilyID     string              `json:"familyId"`
	EntityType   string              `json:"entityType"`
	EntityID     string              `json:"entityId,omitempty"`
	Action       string              `json:"action"`
	ActorID      string              `json:"actorId"`
	ActorRole    string              `json:"actorRole,omitempty"`
	Severity     string              `json:"severity"`
	AffectsMoney bool                `json:"affectsMoney"`
	AffectsStr   bool                `json:"affectsStreaks"`
	AffectsRules bool                `json:"affectsRules"`
	HumanSummary string              `json:"humanSummary"`
	Reason       string              `json:"reason,omitempty"`
	IPAddress    string              `json:"ipAddress,omitempty"`
	DeviceInfo   string              `json:"deviceInfo,omitempty"`
	RequestID    string              `json:"requestId,omitempty"`
	IsCreation   bool                `json:"isInitialCreation"`
	Changes      []audit.FieldChange `json:"changes"`
	CreatedAt    time.Time           `json:"createdAt"`
}

func FromEntry(e audit.Entry) EntryResponse {
	return EntryResponse{
		ID:           e.ID.String(),
		FamilyID:     e.FamilyID.String(),
		EntityType:   e.EntityType,
		EntityID:     e.EntityID,
		Action:       e.Action,
		ActorID:      e.ActorID.String(),
		ActorRole:    e.ActorRole,
		Severity:     string(e.Severity),
		AffectsMoney: e.AffectsMoney,
		AffectsStr:   e.AffectsStreaks,
		AffectsRules: e.AffectsRules,
		HumanSummary: e.HumanSummary,
		Reason:       e.Reason,
		IPAddress:    e.IPAddress,
		DeviceInfo:   e.DeviceInfo,
		RequestID:    e.RequestID,
		IsCreation:   audit.IsInitialCreation(e.BeforeState),
		Changes:      audit.ComputeDiff(e.BeforeState, e.AfterState),
		CreatedAt:    e.CreatedAt,
	}
}

func FromEntries(entries []audit.Entry) []EntryResponse {
	out := make([]EntryResponse, len(entries))
	for i, e := range entries {
		out[i] = FromEntry(e)
	}
	return out
}
