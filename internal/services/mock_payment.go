package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MockPaymentService is an in-memory processor used when no Stripe key is configured
type MockPaymentService struct {
	mu          sync.Mutex
	intents     map[string]*PaymentIntent
	refunds     map[string]*Refund
	autoSucceed bool
	logger      *zap.Logger
}

// NewMockPaymentService creates a mock processor. With autoSucceed every
// retrieved intent reports succeeded, which lets local checkouts complete.
func NewMockPaymentService(autoSucceed bool, logger *zap.Logger) *MockPaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Payment service: Using mock (no Stripe secret key provided)")
	return &MockPaymentService{
		intents:     make(map[string]*PaymentIntent),
		refunds:     make(map[string]*Refund),
		autoSucceed: autoSucceed,
		logger:      logger,
	}
}

// CreatePaymentIntent records a new intent awaiting payment
func (s *MockPaymentService) CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*PaymentIntent, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrPaymentProvider)
	}

	id := "pi_mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	metadata := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	intent := &PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_mock",
		Amount:       req.Amount,
		Currency:     strings.ToLower(req.Currency),
		Status:       IntentRequiresPaymentMethod,
		Metadata:     metadata,
	}

	s.mu.Lock()
	s.intents[id] = intent
	s.mu.Unlock()

	s.logger.Info("Mock Payment: created intent",
		zap.String("intent_id", id),
		zap.Int64("amount", req.Amount))

	out := *intent
	return &out, nil
}

func missingIntent(id string) error {
	return &StripeError{StatusCode: 404, Type: "invalid_request_error", Code: "resource_missing",
		Message: "No such payment_intent: " + id}
}

// UpdatePaymentIntent changes the amount of an intent that has not been paid
func (s *MockPaymentService) UpdatePaymentIntent(ctx context.Context, id string, req *PaymentIntentRequest) (*PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return nil, missingIntent(id)
	}
	if intent.Status == IntentSucceeded || intent.Status == IntentCanceled {
		return nil, &StripeError{StatusCode: 400, Type: "invalid_request_error", Code: "payment_intent_unexpected_state",
			Message: "This PaymentIntent's amount could not be updated because it has a status of " + string(intent.Status)}
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrPaymentProvider)
	}
	intent.Amount = req.Amount
	for k, v := range req.Metadata {
		intent.Metadata[k] = v
	}

	out := *intent
	return &out, nil
}

// RefundPaymentIntent refunds a succeeded intent in full
func (s *MockPaymentService) RefundPaymentIntent(ctx context.Context, id, reason string) (*Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return nil, missingIntent(id)
	}
	if refund, ok := s.refunds[id]; ok {
		out := *refund
		return &out, nil
	}
	if intent.Status != IntentSucceeded && !s.autoSucceed {
		return nil, &StripeError{StatusCode: 400, Type: "invalid_request_error", Code: "charge_not_refundable",
			Message: "This PaymentIntent does not have a successful charge to refund."}
	}

	refund := &Refund{
		ID:       "re_mock_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		IntentID: id,
		Amount:   intent.Amount,
		Status:   "succeeded",
	}
	s.refunds[id] = refund
	s.logger.Info("Mock Payment: refunded intent",
		zap.String("intent_id", id),
		zap.String("reason", reason),
		zap.Int64("amount", refund.Amount))

	out := *refund
	return &out, nil
}

// Refunded reports whether the intent has been refunded
func (s *MockPaymentService) Refunded(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.refunds[id]
	return ok
}

// GetPaymentIntent returns a stored intent
func (s *MockPaymentService) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return nil, missingIntent(id)
	}
	if s.autoSucceed && intent.Status == IntentRequiresPaymentMethod {
		intent.Status = IntentSucceeded
	}
	out := *intent
	return &out, nil
}

// SetStatus forces an intent into status, attaching reason as the decline message
func (s *MockPaymentService) SetStatus(id string, status PaymentIntentStatus, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if intent, ok := s.intents[id]; ok {
		intent.Status = status
		if reason != "" {
			intent.LastPaymentError = &PaymentError{Message: reason}
		}
	}
}

// VerifyWebhookSignature decodes the payload without checking a signature
func (s *MockPaymentService) VerifyWebhookSignature(payload []byte, header string) (*WebhookEvent, error) {
	return decodeWebhookEvent(payload)
}
