package models

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

// Order is a placed checkout, created pending and completed by the payment webhook
type Order struct {
	ID              string          `json:"id" db:"id"`
	OrderNumber     string          `json:"order_number" db:"order_number"`
	Status          OrderStatus     `json:"status" db:"status"`
	Subtotal        decimal.Decimal `json:"subtotal" db:"subtotal"`
	Tax             decimal.Decimal `json:"tax" db:"tax"`
	Total           decimal.Decimal `json:"total" db:"total"`
	Currency        string          `json:"currency" db:"currency"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	CustomerName    string          `json:"customer_name" db:"customer_name"`
	CustomerEmail   string          `json:"customer_email" db:"customer_email"`
	CustomerPhone   string          `json:"customer_phone,omitempty" db:"customer_phone"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`

	Items []*OrderItem `json:"items,omitempty"`
}

// OrderItem is one persisted cart line
type OrderItem struct {
	ID            string           `json:"id" db:"id"`
	OrderID       string           `json:"order_id" db:"order_id"`
	ProductID     string           `json:"product_id" db:"product_id"`
	ProductName   string           `json:"product_name" db:"product_name"`
	LocationID    string           `json:"location_id,omitempty" db:"location_id"`
	Quantity      int              `json:"quantity" db:"quantity"`
	UnitPrice     decimal.Decimal  `json:"unit_price" db:"unit_price"`
	TotalPrice    decimal.Decimal  `json:"total_price" db:"total_price"`
	SelectedDates []string         `json:"selected_dates,omitempty"`
	TimeSlot      string           `json:"time_slot,omitempty" db:"time_slot"`
	StudentIDs    []string         `json:"student_ids,omitempty"`
	Students      []StudentDetails `json:"students,omitempty"`
	AddOns        []SelectedAddOn  `json:"add_ons,omitempty"`
	Notes         string           `json:"notes,omitempty" db:"notes"`
}

var (
	// Order number format: ORD-YYYYMMDD-XXXXXX (e.g., ORD-20240101-123456)
	orderNumberRegex = regexp.MustCompile(`^ORD-\d{8}-\d{6}$`)
	// Maximum order total of $100,000
	maxOrderTotal = decimal.NewFromInt(100000)
)

// Validate validates the order data
func (o *Order) Validate() error {
	if o.OrderNumber == "" {
		return errors.New("order number is required")
	}
	if !orderNumberRegex.MatchString(o.OrderNumber) {
		return errors.New("order number format is invalid")
	}
	if err := validateOrderTotal(o.Total); err != nil {
		return err
	}
	if !o.Subtotal.Add(o.Tax).Equal(o.Total) {
		return errors.New("order total must equal subtotal plus tax")
	}
	if err := validateOrderStatus(o.Status); err != nil {
		return err
	}
	return validateOrderCustomer(o.CustomerEmail, o.CustomerName)
}

func validateOrderTotal(total decimal.Decimal) error {
	if total.IsNegative() {
		return errors.New("total amount cannot be negative")
	}
	if total.GreaterThan(maxOrderTotal) {
		return errors.New("total amount cannot exceed $100,000")
	}
	return nil
}

func validateOrderStatus(status OrderStatus) error {
	switch status {
	case OrderPending, OrderCompleted, OrderCancelled, OrderRefunded:
		return nil
	default:
		return errors.New("invalid order status")
	}
}

func validateOrderCustomer(email, name string) error {
	if email == "" {
		return errors.New("customer email is required")
	}
	if strings.TrimSpace(name) == "" {
		return errors.New("customer name is required")
	}
	if len(name) > 255 {
		return errors.New("customer name must be less than 255 characters")
	}
	if !IsValidEmail(email) {
		return errors.New("customer email format is invalid")
	}
	return nil
}

// GenerateOrderNumber generates a unique order number
func GenerateOrderNumber() string {
	now := time.Now()
	dateStr := now.Format("20060102")

	max := big.NewInt(1000000)
	randomNum, err := rand.Int(rand.Reader, max)
	if err != nil {
		// Fallback to timestamp-based generation if crypto/rand fails
		return fmt.Sprintf("ORD-%s-%06d", dateStr, now.UnixNano()%1000000)
	}

	return fmt.Sprintf("ORD-%s-%06d", dateStr, randomNum.Int64())
}

// IsPending returns true if the order is pending
func (o *Order) IsPending() bool {
	return o.Status == OrderPending
}

// IsCompleted returns true if the order is completed
func (o *Order) IsCompleted() bool {
	return o.Status == OrderCompleted
}

// CanBeCompleted returns true if the order can be marked as completed
func (o *Order) CanBeCompleted() bool {
	return o.Status == OrderPending
}

// CanBeCancelled returns true if the order can be cancelled
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderPending
}

// IsExpired returns true if a pending order has outlived expiration
func (o *Order) IsExpired(expiration time.Duration) bool {
	if o.Status != OrderPending {
		return false
	}
	return time.Since(o.CreatedAt) > expiration
}

// GetStatusDisplayName returns a human-readable status name
func (o *Order) GetStatusDisplayName() string {
	switch o.Status {
	case OrderPending:
		return "Pending Payment"
	case OrderCompleted:
		return "Completed"
	case OrderCancelled:
		return "Cancelled"
	case OrderRefunded:
		return "Refunded"
	default:
		return string(o.Status)
	}
}
