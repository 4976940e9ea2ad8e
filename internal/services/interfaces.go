package services

import (
	"context"
	"io"
	"time"

	"activity-storefront/internal/models"
	"activity-storefront/internal/repositories"
)

// PaymentService defines the interface for the card payment processor
type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*PaymentIntent, error)
	UpdatePaymentIntent(ctx context.Context, id string, req *PaymentIntentRequest) (*PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
	RefundPaymentIntent(ctx context.Context, id, reason string) (*Refund, error)
	VerifyWebhookSignature(payload []byte, header string) (*WebhookEvent, error)
}

// EmailService defines the interface for transactional email
type EmailService interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order, bookings []*models.Booking, receipt []byte) error
	SendPaymentFailed(ctx context.Context, order *models.Order, reason string) error
}

// StorageService defines the interface for file storage operations
type StorageService interface {
	// Upload uploads a file to storage and returns the public URL
	Upload(ctx context.Context, key string, reader io.Reader, contentType string, size int64) (string, error)

	// Delete removes a file from storage
	Delete(ctx context.Context, key string) error

	// GetURL returns the public URL for a file
	GetURL(key string) string

	// Exists checks if a file exists in storage
	Exists(ctx context.Context, key string) (bool, error)
}

// ProductRepository is the catalog persistence used by services
type ProductRepository interface {
	List(ctx context.Context, filter repositories.ProductFilter) ([]*models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, p *models.Product) (*models.Product, error)
	Update(ctx context.Context, p *models.Product) (*models.Product, error)
	SetImageURL(ctx context.Context, id, imageURL string) error
}

// LocationRepository is the venue persistence used by services
type LocationRepository interface {
	List(ctx context.Context, activeOnly bool) ([]*models.Location, error)
	GetByID(ctx context.Context, id string) (*models.Location, error)
}

// TemplateRepository is the recurring schedule persistence used by services
type TemplateRepository interface {
	ListByProduct(ctx context.Context, productID string) ([]*models.RecurringTemplate, error)
}

// OrderRepository is the order persistence used by services
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error)
	SetPaymentIntent(ctx context.Context, orderID, intentID string) error
	ReplacePending(ctx context.Context, order *models.Order) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) error
	Complete(ctx context.Context, orderID string, drafts []repositories.BookingDraft) (*repositories.CompletedOrder, error)
}

// BookingRepository is the booking persistence used by services
type BookingRepository interface {
	FindByRange(ctx context.Context, filter repositories.BookingFilter) ([]*models.Booking, error)
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	ListByOrder(ctx context.Context, orderID string) ([]*models.Booking, error)
	CountActiveInSlot(ctx context.Context, productID, locationID string, start, end time.Time) (int, error)
	Create(ctx context.Context, b *models.Booking) (*models.Booking, error)
	Update(ctx context.Context, b *models.Booking) (*models.Booking, error)
	SetOrderPaymentStatus(ctx context.Context, orderID string, status models.PaymentStatus) (int64, error)
}

// StaffRepository is the admin account persistence used by services
type StaffRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.Staff, error)
	GetByID(ctx context.Context, id string) (*models.Staff, error)
}
