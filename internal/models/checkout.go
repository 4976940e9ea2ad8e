package models

import (
	"strings"
	"time"
)

// CheckoutSession is the customer contact captured on the checkout form
type CheckoutSession struct {
	CustomerName  string `json:"customer_name" validate:"notblank,max=50,personname"`
	CustomerEmail string `json:"customer_email" validate:"notblank,max=255,email"`
	CustomerPhone string `json:"customer_phone" validate:"notblank,auphone"`
	AcceptTerms   bool   `json:"accept_terms" validate:"accepted"`
	ItemCount     int    `json:"item_count" validate:"min=1"`
}

// Validate validates the checkout session
func (c *CheckoutSession) Validate() error {
	return ValidateStruct(c).ErrOrNil()
}

// RecurringTemplate is the weekly schedule a subscription product runs on
type RecurringTemplate struct {
	ID         string       `json:"id" db:"id"`
	ProductID  string       `json:"product_id" db:"product_id"`
	LocationID string       `json:"location_id" db:"location_id"`
	DayOfWeek  time.Weekday `json:"day_of_week" db:"day_of_week"`
	StartTime  string       `json:"start_time" db:"start_time"` // HH:MM
	EndTime    string       `json:"end_time" db:"end_time"`     // HH:MM
	StartDate  time.Time    `json:"start_date" db:"start_date"`
	EndDate    time.Time    `json:"end_date" db:"end_date"`
	Capacity   int          `json:"capacity" db:"capacity"`
}

// Validate validates the recurring template
func (t *RecurringTemplate) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(t.ProductID) == "" {
		errs.Add("product_id", "is required")
	}
	if strings.TrimSpace(t.LocationID) == "" {
		errs.Add("location_id", "is required")
	}
	if t.DayOfWeek < time.Sunday || t.DayOfWeek > time.Saturday {
		errs.Add("day_of_week", "is invalid")
	}
	if !IsValidTime(t.StartTime) {
		errs.Add("start_time", "must be HH:MM")
	}
	if !IsValidTime(t.EndTime) {
		errs.Add("end_time", "must be HH:MM")
	}
	if IsValidTime(t.StartTime) && IsValidTime(t.EndTime) && minutesOf(t.EndTime) <= minutesOf(t.StartTime) {
		errs.Add("end_time", "must be after start time")
	}
	if t.StartDate.IsZero() {
		errs.Add("start_date", "is required")
	}
	if t.EndDate.IsZero() {
		errs.Add("end_date", "is required")
	}
	if !t.StartDate.IsZero() && !t.EndDate.IsZero() && !t.EndDate.After(t.StartDate) {
		errs.Add("end_date", "must be after start date")
	}
	if t.Capacity < 0 {
		errs.Add("capacity", "cannot be negative")
	}

	return errs.ErrOrNil()
}

// Occurrences lists the session dates of the template in order.
func (t *RecurringTemplate) Occurrences() []time.Time {
	var out []time.Time
	if t.EndDate.Before(t.StartDate) {
		return out
	}
	d := t.StartDate
	for d.Weekday() != t.DayOfWeek {
		d = d.AddDate(0, 0, 1)
	}
	for !d.After(t.EndDate) {
		out = append(out, d)
		d = d.AddDate(0, 0, 7)
	}
	return out
}

// StaffRole is the permission level of an admin account
type StaffRole string

const (
	StaffAdmin StaffRole = "admin"
	StaffUser  StaffRole = "staff"
)

// Staff is an admin calendar user
type Staff struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         StaffRole `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
