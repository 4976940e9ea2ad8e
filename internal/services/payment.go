package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
)

var (
	// ErrPaymentProvider marks failures reported by, or in reaching, the payment processor
	ErrPaymentProvider = errors.New("payment provider error")
	// ErrInvalidSignature is returned for webhook payloads that fail verification
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// PaymentIntentStatus mirrors the processor's intent lifecycle
type PaymentIntentStatus string

const (
	IntentRequiresPaymentMethod PaymentIntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  PaymentIntentStatus = "requires_confirmation"
	IntentRequiresAction        PaymentIntentStatus = "requires_action"
	IntentProcessing            PaymentIntentStatus = "processing"
	IntentSucceeded             PaymentIntentStatus = "succeeded"
	IntentCanceled              PaymentIntentStatus = "canceled"
)

// Webhook event types handled by the checkout service
const (
	EventPaymentSucceeded      = "payment_intent.succeeded"
	EventPaymentFailed         = "payment_intent.payment_failed"
	EventPaymentRequiresAction = "payment_intent.requires_action"
)

// PaymentIntentRequest is the input to CreatePaymentIntent. Amount is in minor units.
type PaymentIntentRequest struct {
	Amount         int64
	Currency       string
	ReceiptEmail   string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// PaymentIntent is the processor's view of a payment
type PaymentIntent struct {
	ID               string              `json:"id"`
	ClientSecret     string              `json:"client_secret,omitempty"`
	Amount           int64               `json:"amount"`
	Currency         string              `json:"currency"`
	Status           PaymentIntentStatus `json:"status"`
	Metadata         map[string]string   `json:"metadata,omitempty"`
	LastPaymentError *PaymentError       `json:"last_payment_error,omitempty"`
}

// PaymentError is the decline reason attached to a failed intent
type PaymentError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// FailureReason returns the decline message, if any.
func (pi *PaymentIntent) FailureReason() string {
	if pi.LastPaymentError == nil {
		return ""
	}
	return pi.LastPaymentError.Message
}

// WebhookEvent is a verified processor notification
type WebhookEvent struct {
	ID      string
	Type    string
	Created time.Time
	Intent  *PaymentIntent
}

// Refund is a processor refund of a captured payment
type Refund struct {
	ID       string `json:"id"`
	IntentID string `json:"payment_intent"`
	Amount   int64  `json:"amount"`
	Status   string `json:"status"`
}

func decodeWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}
	return eventFromStripe(&event)
}

func eventFromStripe(event *stripe.Event) (*WebhookEvent, error) {
	if event.Type == "" {
		return nil, errors.New("webhook event has no type")
	}

	out := &WebhookEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
	}

	if event.Data == nil || len(event.Data.Raw) == 0 {
		return out, nil
	}
	if kind, _ := event.Data.Object["object"].(string); kind != "" && kind != "payment_intent" {
		return out, nil
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("failed to decode webhook object: %w", err)
	}
	if pi.ID != "" {
		out.Intent = intentFromStripe(&pi)
	}
	return out, nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *PaymentIntent {
	intent := &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       PaymentIntentStatus(pi.Status),
		Metadata:     pi.Metadata,
	}
	if e := pi.LastPaymentError; e != nil {
		intent.LastPaymentError = &PaymentError{Code: string(e.Code), Message: e.Msg}
	}
	return intent
}
