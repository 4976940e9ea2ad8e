package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingNoShow    BookingStatus = "NO_SHOW"
)

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted, BookingNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingCompleted || s == BookingNoShow
}

// Active reports whether the booking still occupies a place in its slot.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingConfirmed
}

// PaymentStatus represents the payment state of a booking
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "PENDING"
	PaymentPaid          PaymentStatus = "PAID"
	PaymentPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentRefunded      PaymentStatus = "REFUNDED"
	PaymentFailed        PaymentStatus = "FAILED"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentPartiallyPaid, PaymentRefunded, PaymentFailed:
		return true
	}
	return false
}

// Booking associates a student with a product, location and time range
type Booking struct {
	ID            string          `json:"id" db:"id"`
	StudentID     string          `json:"student_id" db:"student_id"`
	ProductID     string          `json:"product_id" db:"product_id"`
	LocationID    string          `json:"location_id" db:"location_id"`
	OrderID       *string         `json:"order_id,omitempty" db:"order_id"`
	StartDateTime time.Time       `json:"start_date_time" db:"start_date_time"`
	EndDateTime   time.Time       `json:"end_date_time" db:"end_date_time"`
	Status        BookingStatus   `json:"status" db:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status" db:"payment_status"`
	TotalAmount   decimal.Decimal `json:"total_amount" db:"total_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	Notes         string          `json:"notes,omitempty" db:"notes"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`

	// Related data
	Student *StudentDetails `json:"student,omitempty"`
}

// Validate validates the booking data
func (b *Booking) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(b.StudentID) == "" {
		errs.Add("student_id", "is required")
	}
	if strings.TrimSpace(b.ProductID) == "" {
		errs.Add("product_id", "is required")
	}
	if strings.TrimSpace(b.LocationID) == "" {
		errs.Add("location_id", "is required")
	}
	validateRange(&errs, b.StartDateTime, b.EndDateTime)
	if !b.Status.Valid() {
		errs.Add("status", "is invalid")
	}
	if !b.PaymentStatus.Valid() {
		errs.Add("payment_status", "is invalid")
	}
	validateAmounts(&errs, b.TotalAmount, b.AmountPaid)
	if len(b.Notes) > 1000 {
		errs.Add("notes", "must be at most 1000 characters")
	}

	return errs.ErrOrNil()
}

// CanTransitionTo reports whether the booking may move to next.
func (b *Booking) CanTransitionTo(next BookingStatus) bool {
	if b.Status.Terminal() {
		return b.Status == next
	}
	return next.Valid()
}

// Duration returns the length of the booked slot.
func (b *Booking) Duration() time.Duration {
	return b.EndDateTime.Sub(b.StartDateTime)
}

// BookingCreateRequest is the admin payload for a manual booking
type BookingCreateRequest struct {
	StudentID     string          `json:"student_id"`
	ProductID     string          `json:"product_id"`
	LocationID    string          `json:"location_id"`
	StartDateTime time.Time       `json:"start_date_time"`
	EndDateTime   time.Time       `json:"end_date_time"`
	Status        BookingStatus   `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Notes         string          `json:"notes"`
}

// ToBooking builds an unsaved booking, defaulting empty statuses to PENDING.
func (r *BookingCreateRequest) ToBooking() *Booking {
	b := &Booking{
		StudentID:     r.StudentID,
		ProductID:     r.ProductID,
		LocationID:    r.LocationID,
		StartDateTime: r.StartDateTime,
		EndDateTime:   r.EndDateTime,
		Status:        r.Status,
		PaymentStatus: r.PaymentStatus,
		TotalAmount:   r.TotalAmount,
		AmountPaid:    r.AmountPaid,
		Notes:         r.Notes,
	}
	if b.Status == "" {
		b.Status = BookingPending
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = PaymentPending
	}
	return b
}

// Validate validates the create request
func (r *BookingCreateRequest) Validate() error {
	return r.ToBooking().Validate()
}

func validateRange(errs *ValidationErrors, start, end time.Time) {
	if start.IsZero() {
		errs.Add("start_date_time", "is required")
	}
	if end.IsZero() {
		errs.Add("end_date_time", "is required")
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		errs.Add("end_date_time", "must be after start")
	}
}

func validateAmounts(errs *ValidationErrors, total, paid decimal.Decimal) {
	if total.IsNegative() {
		errs.Add("total_amount", "cannot be negative")
	}
	if paid.IsNegative() {
		errs.Add("amount_paid", "cannot be negative")
	}
	if paid.GreaterThan(total) {
		errs.Add("amount_paid", "cannot exceed total amount")
	}
}
