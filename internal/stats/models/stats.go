package models

import (
	"time"

	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
)

// DefaultWorkingDays is the attendance-rate denominator when no period is given.
const DefaultWorkingDays = 22

// CenterStats summarizes attendance at one center.
type CenterStats struct {
	CenterID           id.CenterID `json:"center_id"`
	CenterName         string      `json:"center_name"`
	TotalDays          int         `json:"total_attendance_days"`
	TotalHours         float64     `json:"total_hours_worked"`
	AverageHoursPerDay float64     `json:"average_hours_per_day"`
	WorkingDays        int         `json:"working_days"`
	AttendanceRate     float64     `json:"attendance_rate"`
	CurrentAttendants  int         `json:"current_attendants"`
	LastAttendance     *time.Time  `json:"last_attendance,omitempty"`
}

// Period is an inclusive creation-time window.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func NewPeriod(from, to time.Time) (*Period, error) {
	if from.After(to) {
		return nil, dErrors.New(dErrors.CodeValidation, "period start must not be after its end")
	}
	return &Period{From: from, To: to}, nil
}
