// Package domain holds shared identifier types and enumerations used across
// modules. IDs are distinct UUID wrappers so the compiler rejects mixups
// between, say, a user ID and a family ID.
package domain

import (
	"github.com/google/uuid"

	dErrors "famledger/pkg/domain-errors"
)

// UserID identifies an authenticated principal.
type UserID uuid.UUID

// FamilyID identifies a family group.
type FamilyID uuid.UUID

// ActionRequestID identifies a critical action request.
type ActionRequestID uuid.UUID

// AuditEntryID identifies an audit log entry.
type AuditEntryID uuid.UUID

func (id UserID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id FamilyID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ActionRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AuditEntryID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id UserID) String() string          { return uuid.UUID(id).String() }
func (id FamilyID) String() string        { return uuid.UUID(id).String() }
func (id ActionRequestID) String() string { return uuid.UUID(id).String() }
func (id AuditEntryID) String() string    { return uuid.UUID(id).String() }

// NewUserID generates a fresh user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewFamilyID generates a fresh family ID.
func NewFamilyID() FamilyID { return FamilyID(uuid.New()) }

// NewActionRequestID generates a fresh action request ID.
func NewActionRequestID() ActionRequestID { return ActionRequestID(uuid.New()) }

// NewAuditEntryID generates a fresh audit entry ID.
func NewAuditEntryID() AuditEntryID { return AuditEntryID(uuid.New()) }

// parseUUID enforces the shared invariant: IDs must be valid, non-nil UUIDs.
// Construct IDs via the Parse* functions at trust boundaries; direct casting
// bypasses validation.
func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be nil")
	}
	return parsed, nil
}

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	parsed, err := parseUUID(s, "user id")
	if err != nil {
		return UserID{}, err
	}
	return UserID(parsed), nil
}

// ParseFamilyID constructs a FamilyID from external input.
func ParseFamilyID(s string) (FamilyID, error) {
	parsed, err := parseUUID(s, "family id")
	if err != nil {
		return FamilyID{}, err
	}
	return FamilyID(parsed), nil
}

// ParseActionRequestID constructs an ActionRequestID from external input.
func ParseActionRequestID(s string) (ActionRequestID, error) {
	parsed, err := parseUUID(s, "action request id")
	if err != nil {
		return ActionRequestID{}, err
	}
	return ActionRequestID(parsed), nil
}

// ParseAuditEntryID constructs an AuditEntryID from external input.
func ParseAuditEntryID(s string) (AuditEntryID, error) {
	parsed, err := parseUUID(s, "audit entry id")
	if err != nil {
		return AuditEntryID{}, err
	}
	return AuditEntryID(parsed), nil
}
