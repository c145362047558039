// Package domain holds identifier types shared across modules.
//
// Each identifier is a distinct named UUID type so a CenterID can never be passed
// where a SessionID is expected. Parse functions are the trust boundary: they
// reject empty, malformed and nil UUIDs with CodeInvalidInput.
package domain

import (
	"github.com/google/uuid"

	dErrors "presence/pkg/domain-errors"
)

// CenterID identifies a tourist-assistance center.
type CenterID uuid.UUID

// SessionID identifies one attendance session.
type SessionID uuid.UUID

// AttendantID identifies the staff member clocking in. Issued by the identity
// provider; this service only stores it.
type AttendantID uuid.UUID

func (id CenterID) String() string    { return uuid.UUID(id).String() }
func (id SessionID) String() string   { return uuid.UUID(id).String() }
func (id AttendantID) String() string { return uuid.UUID(id).String() }

func (id CenterID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id AttendantID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func NewCenterID() CenterID   { return CenterID(uuid.New()) }
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// MarshalText lets typed ids serialize as plain UUID strings in JSON.
func (id CenterID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id SessionID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id AttendantID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *CenterID) UnmarshalText(b []byte) error {
	return unmarshalID(b, (*uuid.UUID)(id))
}

func (id *SessionID) UnmarshalText(b []byte) error {
	return unmarshalID(b, (*uuid.UUID)(id))
}

func (id *AttendantID) UnmarshalText(b []byte) error {
	return unmarshalID(b, (*uuid.UUID)(id))
}

func unmarshalID(b []byte, dst *uuid.UUID) error {
	parsed, err := parseUUID(string(b), "id")
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}

func ParseCenterID(s string) (CenterID, error) {
	u, err := parseUUID(s, "center_id")
	return CenterID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session_id")
	return SessionID(u), err
}

func ParseAttendantID(s string) (AttendantID, error) {
	u, err := parseUUID(s, "attendant_id")
	return AttendantID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is too long")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be nil")
	}
	return u, nil
}
