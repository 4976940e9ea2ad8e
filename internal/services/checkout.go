package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"activity-storefront/internal/models"
	"activity-storefront/internal/pricing"
	"activity-storefront/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Cart is the part of the session cart checkout reads and clears
type Cart interface {
	Items() []models.EnhancedCartItem
	Summary() models.CartSummary
	Validation() models.CartValidation
	PendingOrderID() string
	SetPendingOrder(orderID string)
	ClearAfterSuccess(orderID string)
}

// refundReasonCapacity is sent to the customer when a paid session filled up
const refundReasonCapacity = "The session you chose filled up before your payment was confirmed, " +
	"so no booking was made. Your payment has been refunded in full and should reach your card within 5-10 business days."

// CheckoutResult is returned when a payment intent is created for a cart
type CheckoutResult struct {
	OrderID         string             `json:"order_id"`
	OrderNumber     string             `json:"order_number"`
	PaymentIntentID string             `json:"payment_intent_id"`
	ClientSecret    string             `json:"client_secret"`
	Amount          int64              `json:"amount"`
	Currency        string             `json:"currency"`
	Summary         models.CartSummary `json:"summary"`
}

// ConfirmationResult is the outcome of confirming a payment
type ConfirmationResult struct {
	Status   PaymentIntentStatus `json:"status"`
	Order    *models.Order       `json:"order,omitempty"`
	Bookings []*models.Booking   `json:"bookings,omitempty"`
	Reason   string              `json:"reason,omitempty"`
}

// CheckoutService turns a validated cart into a paid order with bookings
type CheckoutService struct {
	orders    OrderRepository
	bookings  BookingRepository
	products  ProductRepository
	locations LocationRepository
	payments  PaymentService
	email     EmailService
	receipts  *ReceiptService
	currency  string
	zone      *time.Location
	logger    *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	orders OrderRepository,
	bookings BookingRepository,
	products ProductRepository,
	locations LocationRepository,
	payments PaymentService,
	email EmailService,
	receipts *ReceiptService,
	currency string,
	logger *zap.Logger,
) *CheckoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = "aud"
	}
	return &CheckoutService{
		orders:    orders,
		bookings:  bookings,
		products:  products,
		locations: locations,
		payments:  payments,
		email:     email,
		receipts:  receipts,
		currency:  strings.ToLower(currency),
		zone:      time.Local,
		logger:    logger,
	}
}

// CreatePaymentIntent persists a pending order for the cart and opens a payment intent for its total
func (s *CheckoutService) CreatePaymentIntent(ctx context.Context, cart Cart, session *models.CheckoutSession) (*CheckoutResult, error) {
	items := cart.Items()
	if len(items) == 0 {
		return nil, models.ErrEmptyCart
	}

	session.ItemCount = len(items)
	if err := session.Validate(); err != nil {
		return nil, err
	}

	validation := cart.Validation()
	if !validation.IsValid {
		var errs models.ValidationErrors
		for _, e := range validation.Errors {
			errs.Add(fmt.Sprintf("items.%s.%s", e.ItemID, e.Field), "%s", e.Message)
		}
		return nil, fmt.Errorf("%w: %w", models.ErrCartInvalid, errs)
	}
	if err := requireLocations(items); err != nil {
		return nil, err
	}

	summary := cart.Summary()
	order := &models.Order{
		OrderNumber:   models.GenerateOrderNumber(),
		Status:        models.OrderPending,
		Subtotal:      summary.Subtotal,
		Tax:           summary.Tax,
		Total:         summary.Total,
		Currency:      s.currency,
		CustomerName:  strings.TrimSpace(session.CustomerName),
		CustomerEmail: strings.ToLower(strings.TrimSpace(session.CustomerEmail)),
		CustomerPhone: strings.TrimSpace(session.CustomerPhone),
	}
	for i := range items {
		order.Items = append(order.Items, orderItemFromCart(&items[i]))
	}

	if pendingID := cart.PendingOrderID(); pendingID != "" {
		resumed, err := s.resumePendingOrder(ctx, pendingID, order, summary)
		if err != nil {
			return nil, err
		}
		if resumed != nil {
			return resumed, nil
		}
	}

	created, err := s.orders.Create(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	amount := pricing.ToMinorUnits(created.Total)
	req := s.intentRequest(created, amount, summary)
	req.IdempotencyKey = "order-" + created.ID
	intent, err := s.payments.CreatePaymentIntent(ctx, req)
	if err != nil {
		if uerr := s.orders.UpdateStatus(ctx, created.ID, models.OrderCancelled); uerr != nil {
			s.logger.Warn("Failed to cancel order after payment error",
				zap.String("order_id", created.ID), zap.Error(uerr))
		}
		return nil, err
	}

	if err := s.orders.SetPaymentIntent(ctx, created.ID, intent.ID); err != nil {
		return nil, fmt.Errorf("failed to attach payment intent: %w", err)
	}
	cart.SetPendingOrder(created.ID)

	s.logger.Info("Checkout started",
		zap.String("order_id", created.ID),
		zap.String("order_number", created.OrderNumber),
		zap.String("intent_id", intent.ID),
		zap.Int64("amount", amount))

	return s.checkoutResult(created, intent, amount, summary), nil
}

// resumePendingOrder points the cart's earlier unpaid order and its payment
// intent at the current cart contents. A nil result means that order can no
// longer be reused and a new one must be opened.
func (s *CheckoutService) resumePendingOrder(ctx context.Context, orderID string, draft *models.Order, summary models.CartSummary) (*CheckoutResult, error) {
	existing, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, models.ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !existing.IsPending() || existing.PaymentIntentID == "" {
		return nil, nil
	}

	pending := *draft
	pending.ID = existing.ID
	pending.OrderNumber = existing.OrderNumber
	pending.PaymentIntentID = existing.PaymentIntentID

	amount := pricing.ToMinorUnits(pending.Total)
	intent, err := s.payments.UpdatePaymentIntent(ctx, existing.PaymentIntentID, s.intentRequest(&pending, amount, summary))
	if err != nil {
		s.logger.Warn("Pending order cannot be reused, opening a new one",
			zap.String("order_id", existing.ID),
			zap.String("intent_id", existing.PaymentIntentID),
			zap.Error(err))
		return nil, nil
	}

	updated, err := s.orders.ReplacePending(ctx, &pending)
	if err != nil {
		return nil, fmt.Errorf("failed to update pending order: %w", err)
	}

	s.logger.Info("Checkout resumed",
		zap.String("order_id", updated.ID),
		zap.String("order_number", updated.OrderNumber),
		zap.String("intent_id", intent.ID),
		zap.Int64("amount", amount))

	return s.checkoutResult(updated, intent, amount, summary), nil
}

func (s *CheckoutService) intentRequest(order *models.Order, amount int64, summary models.CartSummary) *PaymentIntentRequest {
	return &PaymentIntentRequest{
		Amount:       amount,
		Currency:     s.currency,
		ReceiptEmail: order.CustomerEmail,
		Description:  "Order " + order.OrderNumber,
		Metadata: map[string]string{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
			"item_count":   fmt.Sprintf("%d", summary.ItemCount),
		},
	}
}

func (s *CheckoutService) checkoutResult(order *models.Order, intent *PaymentIntent, amount int64, summary models.CartSummary) *CheckoutResult {
	return &CheckoutResult{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          amount,
		Currency:        s.currency,
		Summary:         summary,
	}
}

// PaymentStatus reports the processor's status for intentID
func (s *CheckoutService) PaymentStatus(ctx context.Context, intentID string) (*PaymentIntent, error) {
	return s.payments.GetPaymentIntent(ctx, intentID)
}

// ConfirmPayment finalizes the order behind intentID when the payment has
// succeeded and then clears cart. cart may be nil.
func (s *CheckoutService) ConfirmPayment(ctx context.Context, intentID string, cart Cart) (*ConfirmationResult, error) {
	intent, err := s.payments.GetPaymentIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	result := &ConfirmationResult{Status: intent.Status, Reason: intent.FailureReason()}
	if intent.Status != IntentSucceeded {
		order, err := s.orders.GetByPaymentIntentID(ctx, intentID)
		if err == nil {
			result.Order = order
		} else if !errors.Is(err, models.ErrOrderNotFound) {
			return nil, err
		}
		return result, nil
	}

	completed, err := s.finalize(ctx, intent)
	if err != nil {
		return nil, err
	}
	result.Order = completed.Order
	result.Bookings = completed.Bookings

	if cart != nil {
		cart.ClearAfterSuccess(completed.Order.ID)
	}
	return result, nil
}

// HandleWebhook applies a verified processor event
func (s *CheckoutService) HandleWebhook(ctx context.Context, event *WebhookEvent) error {
	if event.Intent == nil {
		s.logger.Warn("Webhook without payment intent", zap.String("event_id", event.ID), zap.String("type", event.Type))
		return nil
	}

	switch event.Type {
	case EventPaymentSucceeded:
		_, err := s.finalize(ctx, event.Intent)
		if errors.Is(err, models.ErrCapacityExceeded) || errors.Is(err, models.ErrOrderClosed) {
			// Settled by a refund; redelivery cannot change the outcome.
			s.logger.Info("Paid order was refunded instead of completed",
				zap.String("event_id", event.ID),
				zap.String("intent_id", event.Intent.ID))
			return nil
		}
		return err
	case EventPaymentFailed:
		return s.failPayment(ctx, event.Intent)
	case EventPaymentRequiresAction:
		s.logger.Info("Payment requires customer action",
			zap.String("event_id", event.ID),
			zap.String("intent_id", event.Intent.ID))
		return nil
	default:
		s.logger.Debug("Ignoring webhook event", zap.String("event_id", event.ID), zap.String("type", event.Type))
		return nil
	}
}

// finalize completes the order for a succeeded intent and sends the
// confirmation email the first time only. When the session filled up while
// the customer paid, the payment is refunded and the order closed.
func (s *CheckoutService) finalize(ctx context.Context, intent *PaymentIntent) (*repositories.CompletedOrder, error) {
	order, err := s.orders.GetByPaymentIntentID(ctx, intent.ID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderRefunded {
		return nil, fmt.Errorf("order %s is %s: %w", order.OrderNumber, order.Status, models.ErrOrderClosed)
	}

	if expected := pricing.ToMinorUnits(order.Total); intent.Amount != 0 && intent.Amount != expected {
		s.logger.Error("Payment amount does not match order total",
			zap.String("order_id", order.ID),
			zap.Int64("expected", expected),
			zap.Int64("received", intent.Amount))
		return nil, fmt.Errorf("%w: paid %d, order total %d", ErrPaymentProvider, intent.Amount, expected)
	}

	var drafts []repositories.BookingDraft
	if !order.IsCompleted() {
		drafts, err = s.buildDrafts(ctx, order)
		if err != nil {
			return nil, err
		}
	}

	completed, err := s.orders.Complete(ctx, order.ID, drafts)
	if errors.Is(err, models.ErrCapacityExceeded) {
		return nil, s.refundOverbooked(ctx, order, intent, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to complete order %s: %w", order.OrderNumber, err)
	}
	completed.Order.Items = order.Items

	if completed.AlreadyCompleted {
		s.logger.Info("Order already completed", zap.String("order_id", order.ID))
		return completed, nil
	}

	s.logger.Info("Order completed",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int("bookings", len(completed.Bookings)))

	s.sendConfirmation(ctx, completed)
	return completed, nil
}

func (s *CheckoutService) sendConfirmation(ctx context.Context, completed *repositories.CompletedOrder) {
	var receipt []byte
	if s.receipts != nil {
		pdf, err := s.receipts.GenerateReceipt(completed.Order, completed.Bookings)
		if err != nil {
			s.logger.Warn("Failed to render receipt", zap.String("order_id", completed.Order.ID), zap.Error(err))
		} else {
			receipt = pdf
		}
	}

	if err := s.email.SendOrderConfirmation(ctx, completed.Order, completed.Bookings, receipt); err != nil {
		s.logger.Error("Failed to send order confirmation",
			zap.String("order_id", completed.Order.ID),
			zap.Error(err))
	}
}

// refundOverbooked returns the money for an order whose slot filled up after
// the customer paid. A failed refund is returned so the caller retries.
func (s *CheckoutService) refundOverbooked(ctx context.Context, order *models.Order, intent *PaymentIntent, cause error) error {
	s.logger.Warn("Session full after payment, refunding",
		zap.String("order_id", order.ID),
		zap.String("intent_id", intent.ID),
		zap.Error(cause))

	refund, err := s.payments.RefundPaymentIntent(ctx, intent.ID, "capacity_exceeded")
	if err != nil {
		s.logger.Error("Failed to refund overbooked order",
			zap.String("order_id", order.ID),
			zap.String("intent_id", intent.ID),
			zap.Error(err))
		return fmt.Errorf("failed to refund order %s: %w", order.OrderNumber, err)
	}

	if err := s.orders.UpdateStatus(ctx, order.ID, models.OrderRefunded); err != nil {
		return err
	}
	if _, err := s.bookings.SetOrderPaymentStatus(ctx, order.ID, models.PaymentRefunded); err != nil {
		return err
	}

	s.logger.Info("Overbooked order refunded",
		zap.String("order_id", order.ID),
		zap.String("refund_id", refund.ID),
		zap.Int64("amount", refund.Amount))

	if err := s.email.SendPaymentFailed(ctx, order, refundReasonCapacity); err != nil {
		s.logger.Error("Failed to send refund email", zap.String("order_id", order.ID), zap.Error(err))
	}
	return fmt.Errorf("order %s refunded: %w", order.OrderNumber, cause)
}

func (s *CheckoutService) failPayment(ctx context.Context, intent *PaymentIntent) error {
	order, err := s.orders.GetByPaymentIntentID(ctx, intent.ID)
	if err != nil {
		return err
	}
	if !order.IsPending() {
		s.logger.Info("Ignoring payment failure for settled order",
			zap.String("order_id", order.ID),
			zap.String("status", string(order.Status)))
		return nil
	}

	if err := s.orders.UpdateStatus(ctx, order.ID, models.OrderCancelled); err != nil {
		return err
	}
	if _, err := s.bookings.SetOrderPaymentStatus(ctx, order.ID, models.PaymentFailed); err != nil {
		return err
	}

	reason := intent.FailureReason()
	s.logger.Warn("Payment failed",
		zap.String("order_id", order.ID),
		zap.String("intent_id", intent.ID),
		zap.String("reason", reason))

	if err := s.email.SendPaymentFailed(ctx, order, reason); err != nil {
		s.logger.Error("Failed to send payment failure email", zap.String("order_id", order.ID), zap.Error(err))
	}
	return nil
}

// buildDrafts expands each order item into one booking per student per date.
func (s *CheckoutService) buildDrafts(ctx context.Context, order *models.Order) ([]repositories.BookingDraft, error) {
	var drafts []repositories.BookingDraft
	for _, item := range order.Items {
		if len(item.Students) == 0 || len(item.SelectedDates) == 0 {
			continue
		}

		product, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		capacity := product.Capacity
		if item.LocationID != "" {
			location, err := s.locations.GetByID(ctx, item.LocationID)
			if err != nil {
				return nil, err
			}
			if location.Capacity > 0 && (capacity == 0 || location.Capacity < capacity) {
				capacity = location.Capacity
			}
		}

		count := len(item.Students) * len(item.SelectedDates)
		share := pricing.Round(item.TotalPrice.Div(decimal.NewFromInt(int64(count))))

		for _, date := range item.SelectedDates {
			start, end, err := s.slot(date, item.TimeSlot, product.Duration)
			if err != nil {
				return nil, fmt.Errorf("order item %s: %w", item.ID, err)
			}
			for _, student := range item.Students {
				drafts = append(drafts, repositories.BookingDraft{
					Student:  student,
					Capacity: capacity,
					Booking: models.Booking{
						ProductID:     item.ProductID,
						LocationID:    item.LocationID,
						StartDateTime: start,
						EndDateTime:   end,
						Status:        models.BookingConfirmed,
						PaymentStatus: models.PaymentPaid,
						TotalAmount:   share,
						AmountPaid:    share,
						Notes:         item.Notes,
					},
				})
			}
		}
	}
	return drafts, nil
}

// slot resolves a YYYY-MM-DD date and time slot into a concrete range. A
// missing slot books the whole day starting at 09:00.
func (s *CheckoutService) slot(date, timeSlot string, durationMinutes int) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, s.zone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: bad date %q", models.ErrInvalidInput, date)
	}

	fallback := time.Duration(durationMinutes) * time.Minute
	if fallback <= 0 {
		fallback = time.Hour
	}
	if timeSlot == "" {
		start := day.Add(9 * time.Hour)
		return start, start.Add(fallback), nil
	}

	from, to, ok := models.ParseTimeSlot(timeSlot, fallback)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: bad time slot %q", models.ErrInvalidInput, timeSlot)
	}
	return day.Add(from), day.Add(to), nil
}

func requireLocations(items []models.EnhancedCartItem) error {
	var errs models.ValidationErrors
	for i := range items {
		if len(items[i].Students) > 0 && items[i].LocationID == "" {
			errs.Add(fmt.Sprintf("items.%s.location_id", items[i].ID), "Please choose a location for %s", items[i].Product.Name)
		}
	}
	return errs.ErrOrNil()
}

func orderItemFromCart(item *models.EnhancedCartItem) *models.OrderItem {
	dates := item.SelectedDates
	if len(dates) == 0 && item.SelectedDate != "" {
		dates = []string{item.SelectedDate}
	}
	out := &models.OrderItem{
		ProductID:     item.Product.ID,
		ProductName:   item.Product.Name,
		LocationID:    item.LocationID,
		Quantity:      item.Quantity,
		UnitPrice:     item.PricePerItem,
		TotalPrice:    item.TotalPrice,
		SelectedDates: append([]string(nil), dates...),
		TimeSlot:      item.SelectedTimeSlot,
		Students:      append([]models.StudentDetails(nil), item.Students...),
		AddOns:        append([]models.SelectedAddOn(nil), item.AddOns...),
		Notes:         item.Notes,
	}
	return out
}
