// Package httputil provides the JSON helpers shared by all HTTP handlers:
// response writing and the uniform error envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	dErrors "famledger/pkg/domain-errors"
)

// maxBodyBytes caps request bodies. Governance payloads are small; anything
// bigger is abuse.
const maxBodyBytes = 1 << 20

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type errorEnvelope struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError translates a domain error into the uniform JSON envelope.
// Internal errors deliberately omit the description: whatever the cause was,
// it is not the caller's business.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	envelope := errorEnvelope{Error: string(code)}
	if code == dErrors.CodeInternal {
		envelope.Error = "internal_error"
	} else {
		envelope.ErrorDescription = dErrors.MessageOf(err)
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), envelope)
}

// Decode reads and unmarshals a JSON request body into T, enforcing the body
// size cap and rejecting unknown fields.
func Decode[T any](r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	// Trailing garbage after the JSON document is also a malformed body.
	if err := dec.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		return v, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return v, nil
}
