package audit

import (
	"context"
	"time"

	id "presence/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers events that change the attendance ledger and
	// must survive for labor-record retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected or suspicious attempts (clock-ins outside
	// the geofence, sessions flagged invalid on re-check).
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers catalog maintenance and routine activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. It stays
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category    EventCategory
	Timestamp   time.Time
	Action      string
	Subject     string
	AttendantID id.AttendantID
	CenterID    id.CenterID
	SessionID   id.SessionID
	Decision    string
	Reason      string
	RequestID   string
	ClientIP    string
}

type AuditEvent string

const (
	EventCenterCreated     AuditEvent = "center_created"
	EventCenterUpdated     AuditEvent = "center_updated"
	EventCenterDeactivated AuditEvent = "center_deactivated"

	EventClockInRecorded  AuditEvent = "clock_in_recorded"
	EventClockInRejected  AuditEvent = "clock_in_rejected"
	EventClockOutRecorded AuditEvent = "clock_out_recorded"

	EventSessionRevalidated AuditEvent = "session_revalidated"
	EventSessionFlagged     AuditEvent = "session_flagged_invalid"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventClockInRecorded:  CategoryCompliance,
	EventClockOutRecorded: CategoryCompliance,

	EventClockInRejected: CategorySecurity,
	EventSessionFlagged:  CategorySecurity,

	EventCenterCreated:      CategoryOperations,
	EventCenterUpdated:      CategoryOperations,
	EventCenterDeactivated:  CategoryOperations,
	EventSessionRevalidated: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
