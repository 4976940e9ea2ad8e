package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"activity-storefront/internal/config"

	"github.com/cenkalti/backoff/v5"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// webhookTolerance is how old a signed webhook timestamp may be
const webhookTolerance = 5 * time.Minute

// StripeService talks to Stripe payment intents through stripe-go
type StripeService struct {
	api           *client.API
	webhookSecret string
	httpClient    *http.Client
	logger        *zap.Logger
	retryInterval time.Duration
	maxTries      uint
}

// NewStripeService creates a new Stripe payment service
func NewStripeService(cfg config.StripeConfig, logger *zap.Logger) *StripeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = stripe.APIURL
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	// Retries are driven by backoff below, not by the SDK.
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(baseURL),
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     logger.Named("stripe").Sugar(),
		EnableTelemetry:   stripe.Bool(false),
	})

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	return &StripeService{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    httpClient,
		logger:        logger,
		retryInterval: 500 * time.Millisecond,
		maxTries:      3,
	}
}

// UseTransport routes Stripe API calls through rt
func (s *StripeService) UseTransport(rt http.RoundTripper) {
	s.httpClient.Transport = rt
}

// StripeError represents an error response from Stripe
type StripeError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *StripeError) Error() string {
	return fmt.Sprintf("stripe error (%d %s): %s", e.StatusCode, e.Type, e.Message)
}

// Is lets callers match any Stripe failure against ErrPaymentProvider.
func (e *StripeError) Is(target error) bool {
	return target == ErrPaymentProvider
}

// retryable reports whether the request may succeed if sent again
func (e *StripeError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// CreatePaymentIntent creates a payment intent for req.Amount minor units
func (s *StripeService) CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*PaymentIntent, error) {
	pi, err := retry(ctx, s, "create_payment_intent", func() (*stripe.PaymentIntent, error) {
		params := &stripe.PaymentIntentParams{
			Amount:   stripe.Int64(req.Amount),
			Currency: stripe.String(strings.ToLower(req.Currency)),
			AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
				Enabled: stripe.Bool(true),
			},
		}
		applyIntentDetails(params, req)
		params.Context = ctx
		if req.IdempotencyKey != "" {
			params.SetIdempotencyKey(req.IdempotencyKey)
		}
		return s.api.PaymentIntents.New(params)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	intent := intentFromStripe(pi)
	s.logger.Info("Created payment intent",
		zap.String("intent_id", intent.ID),
		zap.Int64("amount", intent.Amount),
		zap.String("currency", intent.Currency))
	return intent, nil
}

// UpdatePaymentIntent changes the amount and details of an unpaid intent
func (s *StripeService) UpdatePaymentIntent(ctx context.Context, id string, req *PaymentIntentRequest) (*PaymentIntent, error) {
	if id == "" {
		return nil, errors.New("payment intent id is required")
	}
	pi, err := retry(ctx, s, "update_payment_intent", func() (*stripe.PaymentIntent, error) {
		params := &stripe.PaymentIntentParams{Amount: stripe.Int64(req.Amount)}
		applyIntentDetails(params, req)
		params.Context = ctx
		return s.api.PaymentIntents.Update(id, params)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update payment intent: %w", err)
	}

	intent := intentFromStripe(pi)
	s.logger.Info("Updated payment intent",
		zap.String("intent_id", intent.ID),
		zap.Int64("amount", intent.Amount))
	return intent, nil
}

// GetPaymentIntent retrieves a payment intent by ID
func (s *StripeService) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	if id == "" {
		return nil, errors.New("payment intent id is required")
	}
	pi, err := retry(ctx, s, "get_payment_intent", func() (*stripe.PaymentIntent, error) {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		return s.api.PaymentIntents.Get(id, params)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

// RefundPaymentIntent refunds the full captured amount of a payment intent
func (s *StripeService) RefundPaymentIntent(ctx context.Context, id, reason string) (*Refund, error) {
	if id == "" {
		return nil, errors.New("payment intent id is required")
	}
	refund, err := retry(ctx, s, "refund_payment_intent", func() (*stripe.Refund, error) {
		params := &stripe.RefundParams{PaymentIntent: stripe.String(id)}
		if reason != "" {
			params.AddMetadata("reason", reason)
		}
		params.Context = ctx
		params.SetIdempotencyKey("refund-" + id)
		return s.api.Refunds.New(params)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to refund payment intent: %w", err)
	}

	s.logger.Info("Refunded payment intent",
		zap.String("intent_id", id),
		zap.String("refund_id", refund.ID),
		zap.Int64("amount", refund.Amount))
	return &Refund{ID: refund.ID, IntentID: id, Amount: refund.Amount, Status: string(refund.Status)}, nil
}

func applyIntentDetails(params *stripe.PaymentIntentParams, req *PaymentIntentRequest) {
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	keys := make([]string, 0, len(req.Metadata))
	for k := range req.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		params.AddMetadata(k, req.Metadata[k])
	}
}

// retry runs call with exponential backoff. Stripe rejections other than
// rate limits and server errors are returned at once.
func retry[T any](ctx context.Context, s *StripeService, op string, call func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval

	operation := func() (T, error) {
		out, err := call()
		if err == nil {
			return out, nil
		}

		var sErr *stripe.Error
		if errors.As(err, &sErr) {
			apiErr := stripeErrorFrom(sErr)
			if !apiErr.retryable() {
				return out, backoff.Permanent(apiErr)
			}
			s.logger.Warn("Stripe request will be retried",
				zap.String("op", op), zap.Int("status", apiErr.StatusCode))
			return out, apiErr
		}

		s.logger.Warn("Stripe request failed", zap.String("op", op), zap.Error(err))
		return out, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.maxTries))
}

func stripeErrorFrom(err *stripe.Error) *StripeError {
	apiErr := &StripeError{
		StatusCode: err.HTTPStatusCode,
		Type:       string(err.Type),
		Code:       string(err.Code),
		Message:    err.Msg,
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(apiErr.StatusCode)
	}
	return apiErr
}

// VerifyWebhookSignature checks the Stripe-Signature header and decodes the event
func (s *StripeService) VerifyWebhookSignature(payload []byte, header string) (*WebhookEvent, error) {
	if s.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}

	event, err := webhook.ConstructEventWithOptions(payload, header, s.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return eventFromStripe(&event)
}

// SignatureHeader builds a Stripe-Signature header value for payload
func SignatureHeader(secret string, timestamp time.Time, payload []byte) string {
	sig := webhook.ComputeSignature(timestamp, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", timestamp.Unix(), hex.EncodeToString(sig))
}
