package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"activity-storefront/internal/models"

	"github.com/shopspring/decimal"
)

// UpdateType tags the variant carried by an EventUpdate
type UpdateType string

const (
	UpdateReschedule    UpdateType = "reschedule"
	UpdateStatus        UpdateType = "status"
	UpdatePaymentStatus UpdateType = "payment_status"
)

// EventUpdate is a change sent from the admin calendar. The set of variants
// is closed: Reschedule, StatusChange and PaymentStatusChange.
type EventUpdate interface {
	Type() UpdateType
	Validate() error
	Apply(b *models.Booking) error
	isEventUpdate()
}

// Reschedule moves a booking, from a drag or resize in the widget.
type Reschedule struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// StatusChange moves a booking through its lifecycle.
type StatusChange struct {
	Status models.BookingStatus `json:"status"`
}

// PaymentStatusChange records a payment update. AmountPaid is optional.
type PaymentStatusChange struct {
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	AmountPaid    *decimal.Decimal     `json:"amount_paid,omitempty"`
}

func (Reschedule) isEventUpdate()          {}
func (StatusChange) isEventUpdate()        {}
func (PaymentStatusChange) isEventUpdate() {}

func (Reschedule) Type() UpdateType          { return UpdateReschedule }
func (StatusChange) Type() UpdateType        { return UpdateStatus }
func (PaymentStatusChange) Type() UpdateType { return UpdatePaymentStatus }

func (u Reschedule) Validate() error {
	var errs models.ValidationErrors
	if u.Start.IsZero() {
		errs.Add("start", "is required")
	}
	if u.End.IsZero() {
		errs.Add("end", "is required")
	}
	if !u.Start.IsZero() && !u.End.IsZero() && !u.End.After(u.Start) {
		errs.Add("end", "must be after start")
	}
	return errs.ErrOrNil()
}

func (u Reschedule) Apply(b *models.Booking) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if b.Status.Terminal() {
		return fmt.Errorf("cannot reschedule %s booking: %w", b.Status, models.ErrBookingTerminal)
	}
	b.StartDateTime = u.Start
	b.EndDateTime = u.End
	return nil
}

func (u StatusChange) Validate() error {
	if !u.Status.Valid() {
		return models.ValidationErrors{{Field: "status", Message: "is invalid"}}
	}
	return nil
}

func (u StatusChange) Apply(b *models.Booking) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if !b.CanTransitionTo(u.Status) {
		return fmt.Errorf("cannot move %s booking to %s: %w", b.Status, u.Status, models.ErrBookingTerminal)
	}
	b.Status = u.Status
	return nil
}

func (u PaymentStatusChange) Validate() error {
	var errs models.ValidationErrors
	if !u.PaymentStatus.Valid() {
		errs.Add("payment_status", "is invalid")
	}
	if u.AmountPaid != nil && u.AmountPaid.IsNegative() {
		errs.Add("amount_paid", "cannot be negative")
	}
	return errs.ErrOrNil()
}

// Apply sets the payment status. Without an explicit amount, PAID settles
// the full total and REFUNDED zeroes it.
func (u PaymentStatusChange) Apply(b *models.Booking) error {
	if err := u.Validate(); err != nil {
		return err
	}

	paid := b.AmountPaid
	switch {
	case u.AmountPaid != nil:
		paid = *u.AmountPaid
	case u.PaymentStatus == models.PaymentPaid:
		paid = b.TotalAmount
	case u.PaymentStatus == models.PaymentRefunded:
		paid = decimal.Zero
	}
	if paid.GreaterThan(b.TotalAmount) {
		return models.ValidationErrors{{Field: "amount_paid", Message: "cannot exceed total amount"}}
	}

	b.PaymentStatus = u.PaymentStatus
	b.AmountPaid = paid
	return nil
}

// updateEnvelope is the wire form: {"type": "...", ...variant fields}.
type updateEnvelope struct {
	Type UpdateType `json:"type"`
}

// DecodeUpdate parses a tagged update from JSON.
func DecodeUpdate(data []byte) (EventUpdate, error) {
	var env updateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid update payload: %w", models.ErrInvalidInput)
	}

	var (
		update EventUpdate
		err    error
	)
	switch env.Type {
	case UpdateReschedule:
		var u Reschedule
		err = json.Unmarshal(data, &u)
		update = u
	case UpdateStatus:
		var u StatusChange
		err = json.Unmarshal(data, &u)
		update = u
	case UpdatePaymentStatus:
		var u PaymentStatusChange
		err = json.Unmarshal(data, &u)
		update = u
	default:
		return nil, models.ValidationErrors{{Field: "type", Message: fmt.Sprintf("unknown update type %q", env.Type)}}
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s update: %w", env.Type, errors.Join(models.ErrInvalidInput, err))
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}
	return update, nil
}

// EncodeUpdate is the inverse of DecodeUpdate.
func EncodeUpdate(u EventUpdate) ([]byte, error) {
	body, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(u.Type())
	fields["type"] = tag
	return json.Marshal(fields)
}
