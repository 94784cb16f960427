package danger

import (
	"encoding/json"

	dErrors "famledger/pkg/domain-errors"
)

// Payload is the decoded, kind-specific form of a request's action input.
// Requests store the raw JSON; DecodePayload projects it into the variant
// for the request's kind.
type Payload interface {
	isActionPayload()
}

// SettingsChange carries the settings map for update_critical_settings.
type SettingsChange struct {
	Settings map[string]any `json:"settings"`
}

// GroupDeletion carries the member-typed confirmation phrase for
// delete_group.
type GroupDeletion struct {
	Confirm string `json:"confirm"`
}

// ContributionOverride identifies the contribution to correct and the
// replacement amount for override_contribution.
type ContributionOverride struct {
	ContributionID string  `json:"contributionId"`
	Amount         float64 `json:"amount"`
	Note           string  `json:"note,omitempty"`
}

// LeaderboardReset names the season being reset for reset_leaderboard.
type LeaderboardReset struct {
	Season string `json:"season,omitempty"`
}

// RawPayload preserves the input of a kind this build cannot decode, so
// requests written by a newer deployment stay readable and auditable.
type RawPayload struct {
	Kind ActionKind
	Data json.RawMessage
}

func (SettingsChange) isActionPayload()       {}
func (GroupDeletion) isActionPayload()        {}
func (ContributionOverride) isActionPayload() {}
func (LeaderboardReset) isActionPayload()     {}
func (RawPayload) isActionPayload()           {}

// DecodePayload projects raw action input into the typed variant for the
// kind. An absent payload decodes to the variant's zero value; executors
// decide whether their fields are mandatory. Unknown kinds decode to
// RawPayload.
func DecodePayload(kind ActionKind, raw json.RawMessage) (Payload, error) {
	if len(raw) > 0 && !json.Valid(raw) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "payload is not valid JSON")
	}

	switch kind {
	case KindUpdateCriticalSettings:
		var p SettingsChange
		if err := decodeInto(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindDeleteGroup:
		var p GroupDeletion
		if err := decodeInto(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindOverrideContribution:
		var p ContributionOverride
		if err := decodeInto(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindResetLeaderboard:
		var p LeaderboardReset
		if err := decodeInto(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return RawPayload{Kind: kind, Data: raw}, nil
	}
}

func decodeInto(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "payload does not match the action kind")
	}
	return nil
}
