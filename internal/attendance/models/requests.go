package models

import (
	"strings"

	id "presence/pkg/domain"
)

// ClockInRequest is the attendant client's clock-in body.
type ClockInRequest struct {
	CenterID      string   `json:"center_id" validate:"required"`
	AttendantID   string   `json:"attendant_id" validate:"required"`
	AttendantName string   `json:"attendant_name" validate:"required,max=200"`
	Latitude      *float64 `json:"latitude" validate:"required,latitude"`
	Longitude     *float64 `json:"longitude" validate:"required,longitude"`
	Accuracy      *float64 `json:"accuracy" validate:"omitempty,gte=0"`

	parsedCenterID    id.CenterID
	parsedAttendantID id.AttendantID
}

func (r *ClockInRequest) Normalize() {
	r.CenterID = strings.TrimSpace(r.CenterID)
	r.AttendantID = strings.TrimSpace(r.AttendantID)
	r.AttendantName = strings.TrimSpace(r.AttendantName)
}

// Validate parses the identifiers; struct tags cover the rest.
func (r *ClockInRequest) Validate() error {
	centerID, err := id.ParseCenterID(r.CenterID)
	if err != nil {
		return err
	}
	attendantID, err := id.ParseAttendantID(r.AttendantID)
	if err != nil {
		return err
	}
	r.parsedCenterID = centerID
	r.parsedAttendantID = attendantID
	return nil
}

func (r *ClockInRequest) ParsedCenterID() id.CenterID {
	return r.parsedCenterID
}

func (r *ClockInRequest) ParsedAttendantID() id.AttendantID {
	return r.parsedAttendantID
}

func (r *ClockInRequest) Position() Position {
	return Position{Latitude: *r.Latitude, Longitude: *r.Longitude, Accuracy: r.Accuracy}
}

// ClockOutRequest is the attendant client's clock-out body. The position is
// recorded only when both coordinates are present.
type ClockOutRequest struct {
	AttendantID string   `json:"attendant_id" validate:"required"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,longitude"`
	Accuracy    *float64 `json:"accuracy" validate:"omitempty,gte=0"`
	Notes       string   `json:"notes" validate:"max=2000"`

	parsedAttendantID id.AttendantID
}

func (r *ClockOutRequest) Normalize() {
	r.AttendantID = strings.TrimSpace(r.AttendantID)
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *ClockOutRequest) Validate() error {
	attendantID, err := id.ParseAttendantID(r.AttendantID)
	if err != nil {
		return err
	}
	r.parsedAttendantID = attendantID
	return nil
}

func (r *ClockOutRequest) ParsedAttendantID() id.AttendantID {
	return r.parsedAttendantID
}

// Position returns nil unless both coordinates were supplied.
func (r *ClockOutRequest) Position() *Position {
	if r.Latitude == nil || r.Longitude == nil {
		return nil
	}
	return &Position{Latitude: *r.Latitude, Longitude: *r.Longitude, Accuracy: r.Accuracy}
}
