package models

import (
	"math"
	"time"

	"presence/internal/geo"
	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
)

// Position is a device-reported location. Accuracy is the reported radius in
// meters and is informational only.
type Position struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

func (p Position) Point() geo.Point {
	return geo.Point{Latitude: p.Latitude, Longitude: p.Longitude}
}

// Session is one clock-in/clock-out interval for one attendant at one center.
//
// Invariants:
//   - Status starts as active; only active sessions can complete
//   - ClockOutTime, when set, is strictly after ClockInTime
//   - DurationHours is set exactly when Status is completed
//   - AuditStatus starts valid since clock-in already passed the geofence
type Session struct {
	ID               id.SessionID   `json:"id"`
	CenterID         id.CenterID    `json:"center_id"`
	AttendantID      id.AttendantID `json:"attendant_id"`
	AttendantName    string         `json:"attendant_name"`
	ClockInTime      time.Time      `json:"clock_in_time"`
	ClockInPosition  Position       `json:"clock_in_position"`
	ClockOutTime     *time.Time     `json:"clock_out_time,omitempty"`
	ClockOutPosition *Position      `json:"clock_out_position,omitempty"`
	DurationHours    *float64       `json:"duration_hours,omitempty"`
	Status           Status         `json:"status"`
	AuditStatus      AuditStatus    `json:"audit_status"`
	Notes            string         `json:"notes,omitempty"`
	Device           string         `json:"device,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// NewSession opens an active session. Callers must have validated the
// position against the center's fence.
func NewSession(sessionID id.SessionID, centerID id.CenterID, attendantID id.AttendantID, attendantName string, pos Position, device string, now time.Time) *Session {
	return &Session{
		ID:              sessionID,
		CenterID:        centerID,
		AttendantID:     attendantID,
		AttendantName:   attendantName,
		ClockInTime:     now,
		ClockInPosition: pos,
		Status:          StatusActive,
		AuditStatus:     AuditValid,
		Device:          device,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Complete records the clock-out. A nil position keeps ClockOutPosition unset
// and empty notes keep whatever was stored before.
func (s *Session) Complete(at time.Time, pos *Position, notes string) error {
	if !s.Status.CanTransitionTo(StatusCompleted) {
		return dErrors.New(dErrors.CodeInvariantViolation, "session is not active")
	}
	if !at.After(s.ClockInTime) {
		return dErrors.New(dErrors.CodeInvariantViolation, "clock-out must be after clock-in")
	}
	hours := DurationHours(at.Sub(s.ClockInTime))
	s.ClockOutTime = &at
	s.ClockOutPosition = pos
	s.DurationHours = &hours
	s.Status = StatusCompleted
	if notes != "" {
		s.Notes = notes
	}
	s.UpdatedAt = at
	return nil
}

// SetAuditStatus records a re-check outcome without touching the lifecycle.
func (s *Session) SetAuditStatus(status AuditStatus, now time.Time) {
	s.AuditStatus = status
	s.UpdatedAt = now
}

// Invalidate moves the session to the terminal invalid state.
func (s *Session) Invalidate(now time.Time) error {
	if !s.Status.CanTransitionTo(StatusInvalid) {
		return dErrors.New(dErrors.CodeInvariantViolation, "session cannot be invalidated from status "+string(s.Status))
	}
	s.Status = StatusInvalid
	s.UpdatedAt = now
	return nil
}

// Hours returns the recorded duration, or 0 while the session is open.
func (s *Session) Hours() float64 {
	if s.DurationHours == nil {
		return 0
	}
	return *s.DurationHours
}

// DurationHours converts d to hours rounded to 2 decimal places.
func DurationHours(d time.Duration) float64 {
	return RoundTo2(d.Seconds() / 3600)
}

func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

// HistoryFilter narrows a history query. Zero values mean "any"; From and To
// are inclusive bounds on creation time.
type HistoryFilter struct {
	AttendantID *id.AttendantID
	CenterID    *id.CenterID
	From        *time.Time
	To          *time.Time
}

// Matches reports whether s satisfies the filter.
func (f HistoryFilter) Matches(s *Session) bool {
	if f.AttendantID != nil && s.AttendantID != *f.AttendantID {
		return false
	}
	if f.CenterID != nil && s.CenterID != *f.CenterID {
		return false
	}
	if f.From != nil && s.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && s.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// ActiveAttendant is an open session enriched with its center's location.
type ActiveAttendant struct {
	Session       *Session `json:"session"`
	CenterName    string   `json:"center_name"`
	CenterAddress string   `json:"center_address"`
	CenterCity    string   `json:"center_city"`
}
