package models

import "strings"

// CreateCenterRequest is the administrator's input for a new center.
// Coordinates are pointers so that 0 is distinguishable from missing.
type CreateCenterRequest struct {
	Name            string      `json:"name" validate:"required,max=200"`
	Description     string      `json:"description" validate:"max=2000"`
	Address         string      `json:"address" validate:"max=300"`
	City            string      `json:"city" validate:"max=120"`
	Region          string      `json:"region" validate:"max=120"`
	Latitude        *float64    `json:"latitude" validate:"required,latitude"`
	Longitude       *float64    `json:"longitude" validate:"required,longitude"`
	ToleranceMeters int         `json:"tolerance_meters" validate:"gt=0,lte=100000"`
	Contact         Contact     `json:"contact"`
	Hours           WeeklyHours `json:"hours"`
	Services        []string    `json:"services" validate:"max=50,dive,max=100"`
	Active          *bool       `json:"active"`
}

func (r *CreateCenterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.Address = strings.TrimSpace(r.Address)
	r.City = strings.TrimSpace(r.City)
	r.Region = strings.TrimSpace(r.Region)
	r.Contact.normalize()
}

// UpdateCenterRequest is a partial update: nil fields are left untouched.
type UpdateCenterRequest struct {
	Name            *string      `json:"name" validate:"omitempty,min=1,max=200"`
	Description     *string      `json:"description" validate:"omitempty,max=2000"`
	Address         *string      `json:"address" validate:"omitempty,max=300"`
	City            *string      `json:"city" validate:"omitempty,max=120"`
	Region          *string      `json:"region" validate:"omitempty,max=120"`
	Latitude        *float64     `json:"latitude" validate:"omitempty,latitude"`
	Longitude       *float64     `json:"longitude" validate:"omitempty,longitude"`
	ToleranceMeters *int         `json:"tolerance_meters" validate:"omitempty,gt=0,lte=100000"`
	Contact         *Contact     `json:"contact"`
	Hours           *WeeklyHours `json:"hours"`
	Services        []string     `json:"services" validate:"omitempty,max=50,dive,max=100"`
	Active          *bool        `json:"active"`
}

func (r *UpdateCenterRequest) Normalize() {
	for _, s := range []*string{r.Name, r.Description, r.Address, r.City, r.Region} {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
	if r.Contact != nil {
		r.Contact.normalize()
	}
}

func (c *Contact) normalize() {
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.ManagerName = strings.TrimSpace(c.ManagerName)
}
