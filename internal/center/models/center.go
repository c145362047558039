package models

import (
	"strings"
	"time"

	"presence/internal/geo"
	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
	pstrings "presence/pkg/platform/strings"
)

// Center is a registered physical assistance location.
//
// Invariants:
//   - Name is non-empty
//   - Latitude is within [-90, 90] and Longitude within [-180, 180]
//   - ToleranceMeters is positive
//   - Centers are never deleted; deactivation only clears Active
type Center struct {
	ID              id.CenterID `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	Address         string      `json:"address"`
	City            string      `json:"city"`
	Region          string      `json:"region"`
	Latitude        float64     `json:"latitude"`
	Longitude       float64     `json:"longitude"`
	ToleranceMeters int         `json:"tolerance_meters"`
	Contact         Contact     `json:"contact"`
	Hours           WeeklyHours `json:"hours"`
	Services        []string    `json:"services"`
	Active          bool        `json:"active"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type Contact struct {
	Phone       string `json:"phone,omitempty" validate:"max=40"`
	Email       string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	ManagerName string `json:"manager_name,omitempty" validate:"max=120"`
}

// WeeklyHours holds free-form opening hours per weekday, e.g. "08:00-18:00".
// An empty day means closed.
type WeeklyHours struct {
	Monday    string `json:"monday,omitempty"`
	Tuesday   string `json:"tuesday,omitempty"`
	Wednesday string `json:"wednesday,omitempty"`
	Thursday  string `json:"thursday,omitempty"`
	Friday    string `json:"friday,omitempty"`
	Saturday  string `json:"saturday,omitempty"`
	Sunday    string `json:"sunday,omitempty"`
}

// Fence returns the geofence clock-ins at this center are checked against.
func (c *Center) Fence() geo.Fence {
	return geo.Fence{
		Center:          geo.Point{Latitude: c.Latitude, Longitude: c.Longitude},
		ToleranceMeters: c.ToleranceMeters,
	}
}

// NewCenter builds an active center from a create request and checks invariants.
func NewCenter(centerID id.CenterID, req CreateCenterRequest, now time.Time) (*Center, error) {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	c := &Center{
		ID:              centerID,
		Name:            req.Name,
		Description:     req.Description,
		Address:         req.Address,
		City:            req.City,
		Region:          req.Region,
		Latitude:        deref(req.Latitude),
		Longitude:       deref(req.Longitude),
		ToleranceMeters: req.ToleranceMeters,
		Contact:         req.Contact,
		Hours:           req.Hours,
		Services:        NormalizeServices(req.Services),
		Active:          active,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Apply merges a patch. Only non-nil patch fields change.
func (c *Center) Apply(p UpdateCenterRequest, now time.Time) error {
	next := *c
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Address != nil {
		next.Address = *p.Address
	}
	if p.City != nil {
		next.City = *p.City
	}
	if p.Region != nil {
		next.Region = *p.Region
	}
	if p.Latitude != nil {
		next.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		next.Longitude = *p.Longitude
	}
	if p.ToleranceMeters != nil {
		next.ToleranceMeters = *p.ToleranceMeters
	}
	if p.Contact != nil {
		next.Contact = *p.Contact
	}
	if p.Hours != nil {
		next.Hours = *p.Hours
	}
	if p.Services != nil {
		next.Services = NormalizeServices(p.Services)
	}
	if p.Active != nil {
		next.Active = *p.Active
	}
	if err := next.validate(); err != nil {
		return err
	}
	next.UpdatedAt = now
	*c = next
	return nil
}

// Deactivate hides the center from listings. Sessions keep referencing it.
func (c *Center) Deactivate(now time.Time) error {
	if !c.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "center is already inactive")
	}
	c.Active = false
	c.UpdatedAt = now
	return nil
}

func (c *Center) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "center name is required")
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return dErrors.New(dErrors.CodeInvariantViolation, "latitude must be between -90 and 90")
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return dErrors.New(dErrors.CodeInvariantViolation, "longitude must be between -180 and 180")
	}
	if c.ToleranceMeters <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "tolerance must be a positive number of meters")
	}
	return nil
}

// NormalizeServices trims entries and drops blanks and case-insensitive
// duplicates, keeping order.
func NormalizeServices(values []string) []string {
	return pstrings.DedupeAndTrimFold(values)
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
