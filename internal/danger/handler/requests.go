package handler

import (
	"encoding/json"

	"famledger/internal/danger"
)

// CreateRequest is the body of POST /danger-actions.
type CreateRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Reason  string          `json:"reason"`
}

func (r CreateRequest) ToInput() danger.CreateInput {
	return danger.CreateInput{
		Kind:    danger.ActionKind(r.Kind),
		Payload: r.Payload,
		Reason:  r.Reason,
	}
}

// DecisionRequest is the body of the approve and reject endpoints. Reason is
// optional on approve, required on reject.
type DecisionRequest struct {
	Reason string `json:"reason,omitempty"`
}
