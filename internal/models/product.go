package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductType is the catalog category of a product
type ProductType string

const (
	ProductCamp         ProductType = "CAMP"
	ProductBirthday     ProductType = "BIRTHDAY"
	ProductSubscription ProductType = "SUBSCRIPTION"
)

// Valid reports whether t is a known product type.
func (t ProductType) Valid() bool {
	switch t {
	case ProductCamp, ProductBirthday, ProductSubscription:
		return true
	}
	return false
}

// RequiresStudents is true for categories where every unit needs a named participant.
func (t ProductType) RequiresStudents() bool {
	return t == ProductCamp || t == ProductBirthday
}

// Pricing holds the base price and optional discounts of a product
type Pricing struct {
	BasePrice         decimal.Decimal  `json:"base_price"`
	EarlyBirdDiscount *decimal.Decimal `json:"early_bird_discount,omitempty"` // rate in [0,1]
	EarlyBirdDeadline *time.Time       `json:"early_bird_deadline,omitempty"`
	SiblingDiscount   *decimal.Decimal `json:"sibling_discount,omitempty"` // rate in [0,1]
}

// AgeRange is the inclusive participant age window of a product
type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether age lies within the range.
func (r AgeRange) Contains(age int) bool {
	return age >= r.Min && age <= r.Max
}

// AddOn is an optional extra sold alongside a product (party bags, lunch packs)
type AddOn struct {
	ID          string          `json:"id" db:"id"`
	ProductID   string          `json:"product_id,omitempty" db:"product_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description,omitempty" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Active      bool            `json:"active" db:"active"`
}

// Product represents a catalog entry
type Product struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Type        ProductType `json:"type" db:"type"`
	Subtype     string      `json:"subtype,omitempty" db:"subtype"`
	Description string      `json:"description,omitempty" db:"description"`
	Pricing     Pricing     `json:"pricing"`
	Duration    int         `json:"duration" db:"duration"` // minutes
	Capacity    int         `json:"capacity" db:"capacity"`
	AgeRange    AgeRange    `json:"age_range"`
	Features    []string    `json:"features,omitempty"`
	Active      bool        `json:"active" db:"active"`
	ImageURL    string      `json:"image_url,omitempty" db:"image_url"`
	AddOns      []AddOn     `json:"add_ons,omitempty"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// FindAddOn returns the add-on with the given id.
func (p *Product) FindAddOn(id string) (AddOn, bool) {
	for _, a := range p.AddOns {
		if a.ID == id {
			return a, true
		}
	}
	return AddOn{}, false
}

// Validate validates the product data
func (p *Product) Validate() error {
	var errs ValidationErrors

	name := strings.TrimSpace(p.Name)
	if name == "" {
		errs.Add("name", "is required")
	} else if len(name) > 200 {
		errs.Add("name", "must be at most 200 characters")
	}

	if !p.Type.Valid() {
		errs.Add("type", "must be one of CAMP, BIRTHDAY, SUBSCRIPTION")
	}

	if p.Pricing.BasePrice.IsNegative() {
		errs.Add("pricing.base_price", "cannot be negative")
	}
	validateRate(&errs, "pricing.early_bird_discount", p.Pricing.EarlyBirdDiscount)
	validateRate(&errs, "pricing.sibling_discount", p.Pricing.SiblingDiscount)
	if p.Pricing.EarlyBirdDiscount != nil && p.Pricing.EarlyBirdDeadline == nil {
		errs.Add("pricing.early_bird_deadline", "is required when an early-bird discount is set")
	}

	if p.Duration < 0 {
		errs.Add("duration", "cannot be negative")
	}
	if p.Capacity < 0 {
		errs.Add("capacity", "cannot be negative")
	}

	if p.AgeRange.Min < MinStudentAge || p.AgeRange.Max > MaxStudentAge {
		errs.Add("age_range", "must lie within %d-%d", MinStudentAge, MaxStudentAge)
	}
	if p.AgeRange.Min > p.AgeRange.Max {
		errs.Add("age_range", "min cannot exceed max")
	}

	for i, a := range p.AddOns {
		if strings.TrimSpace(a.Name) == "" {
			errs.Add(indexed("add_ons", i, "name"), "is required")
		}
		if a.Price.IsNegative() {
			errs.Add(indexed("add_ons", i, "price"), "cannot be negative")
		}
	}

	return errs.ErrOrNil()
}

func validateRate(errs *ValidationErrors, field string, rate *decimal.Decimal) {
	if rate == nil {
		return
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		errs.Add(field, "must be between 0 and 1")
	}
}
