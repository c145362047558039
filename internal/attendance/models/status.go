package models

import (
	dErrors "presence/pkg/domain-errors"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusInvalid   Status = "invalid"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusCompleted, StatusInvalid:
		return Status(s), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown session status: "+s)
	}
}

// IsTerminal reports whether no further lifecycle transition is allowed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusActive:
		return false
	case StatusCompleted, StatusInvalid:
		return true
	default:
		return true
	}
}

// CanTransitionTo encodes active -> completed and active|completed -> invalid.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusCompleted || next == StatusInvalid
	case StatusCompleted:
		return next == StatusInvalid
	case StatusInvalid:
		return false
	default:
		return false
	}
}

// AuditStatus reflects the most recent geofence check of the clock-in position.
type AuditStatus string

const (
	AuditPending AuditStatus = "pending"
	AuditValid   AuditStatus = "valid"
	AuditInvalid AuditStatus = "invalid"
)

func ParseAuditStatus(s string) (AuditStatus, error) {
	switch AuditStatus(s) {
	case AuditPending, AuditValid, AuditInvalid:
		return AuditStatus(s), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown audit status: "+s)
	}
}

// AuditStatusFor maps a geofence outcome to an audit status.
func AuditStatusFor(withinTolerance bool) AuditStatus {
	if withinTolerance {
		return AuditValid
	}
	return AuditInvalid
}
