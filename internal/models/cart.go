package models

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SelectedAddOn is an add-on attached to a cart line with its quantity
type SelectedAddOn struct {
	AddOn    AddOn `json:"add_on"`
	Quantity int   `json:"quantity"`
}

// EnhancedCartItem is a line item: a product with quantity, students, schedule and add-ons.
//
// TotalPrice always equals PricePerItem*Quantity plus the add-on cost; it is
// recomputed by the pricing package and never set independently.
type EnhancedCartItem struct {
	ID                 string           `json:"id"`
	Product            Product          `json:"product"`
	Quantity           int              `json:"quantity"`
	Students           []StudentDetails `json:"students"`
	AddOns             []SelectedAddOn  `json:"add_ons"`
	SelectedDate       string           `json:"selected_date,omitempty"`  // YYYY-MM-DD
	SelectedDates      []string         `json:"selected_dates,omitempty"` // camps spanning several days
	SelectedTimeSlot   string           `json:"selected_time_slot,omitempty"`
	LocationID         string           `json:"location_id,omitempty"`
	PricePerItem       decimal.Decimal  `json:"price_per_item"`
	TotalPrice         decimal.Decimal  `json:"total_price"`
	IsEarlyBird        bool             `json:"is_early_bird"`
	HasSiblingDiscount bool             `json:"has_sibling_discount"`
	CreatedAt          time.Time        `json:"created_at"`
	Notes              string           `json:"notes,omitempty"`
}

// HasSchedule reports whether a date or date list is selected.
func (i *EnhancedCartItem) HasSchedule() bool {
	return i.SelectedDate != "" || len(i.SelectedDates) > 0
}

// ScheduleKey identifies the date+time slot the item occupies. Items without a
// complete schedule return "".
func (i *EnhancedCartItem) ScheduleKey() string {
	date := i.SelectedDate
	if date == "" && len(i.SelectedDates) > 0 {
		date = strings.Join(i.SelectedDates, ",")
	}
	if date == "" || i.SelectedTimeSlot == "" {
		return ""
	}
	return date + "|" + i.SelectedTimeSlot
}

// FindStudent returns the index of the student with id, or -1.
func (i *EnhancedCartItem) FindStudent(id string) int {
	for idx := range i.Students {
		if i.Students[idx].ID == id {
			return idx
		}
	}
	return -1
}

// Clone returns a deep copy so callers cannot mutate store state.
func (i *EnhancedCartItem) Clone() EnhancedCartItem {
	c := *i
	c.Students = slices.Clone(i.Students)
	for idx := range c.Students {
		c.Students[idx].Allergies = slices.Clone(i.Students[idx].Allergies)
	}
	c.AddOns = slices.Clone(i.AddOns)
	c.SelectedDates = slices.Clone(i.SelectedDates)
	c.Product.AddOns = slices.Clone(i.Product.AddOns)
	c.Product.Features = slices.Clone(i.Product.Features)
	return c
}

// CartSummary is derived from the current items; Total = Subtotal + Tax.
type CartSummary struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	Tax          decimal.Decimal `json:"tax"`
	Total        decimal.Decimal `json:"total"`
	ItemCount    int             `json:"item_count"`
	StudentCount int             `json:"student_count"`
}

// CartError is a blocking problem on one item
type CartError struct {
	ItemID  string `json:"item_id"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// CartWarning is an advisory problem on one item
type CartWarning struct {
	ItemID  string `json:"item_id"`
	Message string `json:"message"`
}

// CartValidation is computed fresh on every read and never persisted
type CartValidation struct {
	IsValid  bool          `json:"is_valid"`
	Errors   []CartError   `json:"errors"`
	Warnings []CartWarning `json:"warnings"`
}

// ErrorsFor returns the errors reported against itemID.
func (v CartValidation) ErrorsFor(itemID string) []CartError {
	var out []CartError
	for _, e := range v.Errors {
		if e.ItemID == itemID {
			out = append(out, e)
		}
	}
	return out
}

// CartItemRequest is the boundary payload for adding a line to the cart
type CartItemRequest struct {
	ProductID  string   `json:"product_id" validate:"notblank"`
	Quantity   int      `json:"quantity" validate:"min=0,max=50"`
	Date       string   `json:"date,omitempty" validate:"isodate"`
	Dates      []string `json:"dates,omitempty" validate:"dive,isodate"`
	TimeSlot   string   `json:"time_slot,omitempty" validate:"timeslot"`
	LocationID string   `json:"location_id,omitempty"`
	Notes      string   `json:"notes,omitempty" validate:"max=500"`
}

// Validate validates the cart item request
func (r *CartItemRequest) Validate() error {
	return ValidateStruct(r).ErrOrNil()
}

// IsValidTimeSlot accepts "HH:MM" or an "HH:MM-HH:MM" range whose end is after its start.
func IsValidTimeSlot(s string) bool {
	start, end, isRange := strings.Cut(s, "-")
	if !isRange {
		return IsValidTime(s)
	}
	return IsValidTime(start) && IsValidTime(end) && minutesOf(end) > minutesOf(start)
}

// ParseTimeSlot returns the slot's start and end as offsets from midnight. A
// single "HH:MM" slot ends after fallback.
func ParseTimeSlot(s string, fallback time.Duration) (time.Duration, time.Duration, bool) {
	if !IsValidTimeSlot(s) {
		return 0, 0, false
	}
	start, end, isRange := strings.Cut(s, "-")
	from := time.Duration(minutesOf(start)) * time.Minute
	if !isRange {
		return from, from + fallback, true
	}
	return from, time.Duration(minutesOf(end)) * time.Minute, true
}

// IsValidDate reports whether s is a YYYY-MM-DD calendar date.
func IsValidDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
