package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"activity-storefront/internal/middleware"
	"activity-storefront/internal/models"
	"activity-storefront/internal/services"

	"go.uber.org/zap"
)

// maxWebhookBytes caps processor webhook payloads
const maxWebhookBytes = 64 << 10

// Checkout is the payment flow used by the Stripe endpoints
type Checkout interface {
	CreatePaymentIntent(ctx context.Context, cart services.Cart, session *models.CheckoutSession) (*services.CheckoutResult, error)
	PaymentStatus(ctx context.Context, intentID string) (*services.PaymentIntent, error)
	ConfirmPayment(ctx context.Context, intentID string, cart services.Cart) (*services.ConfirmationResult, error)
	HandleWebhook(ctx context.Context, event *services.WebhookEvent) error
}

// WebhookVerifier authenticates processor webhook payloads
type WebhookVerifier interface {
	VerifyWebhookSignature(payload []byte, header string) (*services.WebhookEvent, error)
}

// CheckoutHandler serves the Stripe payment endpoints
type CheckoutHandler struct {
	carts    *CartHandler
	checkout Checkout
	verifier WebhookVerifier
	logger   *zap.Logger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(carts *CartHandler, checkout Checkout, verifier WebhookVerifier, logger *zap.Logger) *CheckoutHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutHandler{carts: carts, checkout: checkout, verifier: verifier, logger: logger}
}

// CreatePaymentIntent opens a payment for the session cart
func (h *CheckoutHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var session models.CheckoutSession
	if err := decodeJSON(w, r, &session); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	store := h.carts.open(w, r)
	result, err := h.checkout.CreatePaymentIntent(r.Context(), store, &session)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PaymentStatus reports the processor status for ?payment_intent_id=
func (h *CheckoutHandler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	intentID := strings.TrimSpace(r.URL.Query().Get("payment_intent_id"))
	if intentID == "" {
		respondError(w, r, h.logger, models.ValidationErrors{{Field: "payment_intent_id", Message: "is required"}})
		return
	}

	intent, err := h.checkout.PaymentStatus(r.Context(), intentID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment_intent_id": intent.ID,
		"status":            intent.Status,
		"amount":            intent.Amount,
		"currency":          intent.Currency,
		"reason":            intent.FailureReason(),
	})
}

// ConfirmPaymentRequest names the intent the storefront was redirected back with
type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

// ConfirmPayment finalizes the order once the intent has succeeded and clears the cart
func (h *CheckoutHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if strings.TrimSpace(req.PaymentIntentID) == "" {
		respondError(w, r, h.logger, models.ValidationErrors{{Field: "payment_intent_id", Message: "is required"}})
		return
	}

	store := h.carts.open(w, r)
	result, err := h.checkout.ConfirmPayment(r.Context(), req.PaymentIntentID, store)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Webhook verifies and applies a processor event
func (h *CheckoutHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		h.logger.Warn("Failed to read webhook body", zap.Error(err))
		respondError(w, r, h.logger, models.ErrInvalidInput)
		return
	}

	event, err := h.verifier.VerifyWebhookSignature(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("Rejected webhook", zap.String("remote_ip", middleware.ClientIP(r)), zap.Error(err))
		respondError(w, r, h.logger, err)
		return
	}

	if err := h.checkout.HandleWebhook(r.Context(), event); err != nil {
		h.logger.Error("Failed to apply webhook",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Error(err))
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
