package models

import (
	"strconv"
	"strings"
	"time"
)

// Location is a venue where programs run
type Location struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Address   string    `json:"address" db:"address"`
	Suburb    string    `json:"suburb" db:"suburb"`
	State     string    `json:"state" db:"state"`
	Postcode  string    `json:"postcode" db:"postcode"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	Email     string    `json:"email,omitempty" db:"email"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	Capacity  int       `json:"capacity" db:"capacity"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

var australianStates = map[string]bool{
	"NSW": true, "VIC": true, "QLD": true, "WA": true,
	"SA": true, "TAS": true, "ACT": true, "NT": true,
}

// Validate validates the location data
func (l *Location) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(l.Name) == "" {
		errs.Add("name", "is required")
	}
	if strings.TrimSpace(l.Address) == "" {
		errs.Add("address", "is required")
	}
	if strings.TrimSpace(l.Suburb) == "" {
		errs.Add("suburb", "is required")
	}
	if !australianStates[strings.ToUpper(l.State)] {
		errs.Add("state", "must be an Australian state or territory")
	}
	if !IsValidPostcode(l.Postcode) {
		errs.Add("postcode", "must be 4 digits")
	}
	if l.Phone != "" && !IsValidPhone(l.Phone) {
		errs.Add("phone", "must be a valid Australian phone number")
	}
	if l.Email != "" && !IsValidEmail(l.Email) {
		errs.Add("email", "must be a valid email address")
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		errs.Add("latitude", "must be between -90 and 90")
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		errs.Add("longitude", "must be between -180 and 180")
	}
	if l.Capacity < 0 {
		errs.Add("capacity", "cannot be negative")
	}

	return errs.ErrOrNil()
}

func indexed(prefix string, i int, field string) string {
	return prefix + "[" + strconv.Itoa(i) + "]." + field
}
