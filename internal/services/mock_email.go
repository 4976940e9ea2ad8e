package services

import (
	"context"
	"sync"

	"activity-storefront/internal/models"

	"go.uber.org/zap"
)

// SentEmail is a message captured by MockEmailService
type SentEmail struct {
	Kind          string
	To            string
	OrderNumber   string
	Reason        string
	BookingCount  int
	HasAttachment bool
}

// MockEmailService logs emails instead of sending them
type MockEmailService struct {
	mu     sync.Mutex
	sent   []SentEmail
	logger *zap.Logger
}

// NewMockEmailService creates a new mock email service
func NewMockEmailService(logger *zap.Logger) *MockEmailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Email service: Using mock (no Resend API key provided)")
	return &MockEmailService{logger: logger}
}

// SendOrderConfirmation records a confirmation email
func (s *MockEmailService) SendOrderConfirmation(ctx context.Context, order *models.Order, bookings []*models.Booking, receipt []byte) error {
	s.record(SentEmail{
		Kind:          "order_confirmation",
		To:            order.CustomerEmail,
		OrderNumber:   order.OrderNumber,
		BookingCount:  len(bookings),
		HasAttachment: len(receipt) > 0,
	})
	return nil
}

// SendPaymentFailed records a payment failure email
func (s *MockEmailService) SendPaymentFailed(ctx context.Context, order *models.Order, reason string) error {
	s.record(SentEmail{
		Kind:        "payment_failed",
		To:          order.CustomerEmail,
		OrderNumber: order.OrderNumber,
		Reason:      reason,
	})
	return nil
}

func (s *MockEmailService) record(e SentEmail) {
	s.mu.Lock()
	s.sent = append(s.sent, e)
	s.mu.Unlock()

	s.logger.Info("Mock Email: sent",
		zap.String("kind", e.Kind),
		zap.String("to", e.To),
		zap.String("order_number", e.OrderNumber))
}

// Sent returns a copy of every recorded email
func (s *MockEmailService) Sent() []SentEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentEmail(nil), s.sent...)
}
