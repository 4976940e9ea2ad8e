package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"activity-storefront/internal/config"
	"activity-storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder() *models.Order {
	return &models.Order{
		ID:            "3f0d6c43-5a5e-4a9d-9f8c-2f7c6c0b1a11",
		OrderNumber:   "ORD-20300110-000042",
		Status:        models.OrderCompleted,
		Subtotal:      decimal.NewFromInt(100),
		Tax:           decimal.NewFromInt(10),
		Total:         decimal.NewFromInt(110),
		Currency:      "aud",
		CustomerName:  "Jo Parent",
		CustomerEmail: "jo@example.com",
		CreatedAt:     time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC),
		Items: []*models.OrderItem{{
			ProductName:   "Robotics Camp",
			Quantity:      1,
			UnitPrice:     decimal.NewFromInt(100),
			TotalPrice:    decimal.NewFromInt(110),
			SelectedDates: []string{"2030-01-10"},
			TimeSlot:      "09:00-15:00",
			Students:      []models.StudentDetails{{FirstName: "Sam", LastName: "Parent"}},
		}},
	}
}

func newTestResend(t *testing.T, handler http.HandlerFunc) *ResendEmailService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewResendEmailService(config.ResendConfig{
		APIKey:    "re_test",
		FromEmail: "bookings@example.com",
		FromName:  "Activity Bookings",
	}, nil)
	svc.baseURL = server.URL
	svc.retryInterval = time.Millisecond
	return svc
}

func TestSendOrderConfirmation(t *testing.T) {
	var got ResendEmailRequest
	svc := newTestResend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"email_1"}`))
	})

	receipt := []byte("%PDF-1.3 fake")
	err := svc.SendOrderConfirmation(context.Background(), testOrder(), []*models.Booking{{ID: "b1"}}, receipt)
	require.NoError(t, err)

	assert.Equal(t, "Activity Bookings <bookings@example.com>", got.From)
	assert.Equal(t, []string{"jo@example.com"}, got.To)
	assert.Equal(t, "Booking confirmed - ORD-20300110-000042", got.Subject)
	assert.Contains(t, got.HTML, "Robotics Camp")
	assert.Contains(t, got.HTML, "Sam Parent")
	assert.Contains(t, got.Text, "Total paid: $110.00")

	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "receipt-ORD-20300110-000042.pdf", got.Attachments[0].Filename)
	decoded, err := base64.StdEncoding.DecodeString(got.Attachments[0].Content)
	require.NoError(t, err)
	assert.Equal(t, receipt, decoded)
}

func TestSendEmailRetries(t *testing.T) {
	var calls int32
	svc := newTestResend(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"email_2"}`))
	})

	require.NoError(t, svc.SendPaymentFailed(context.Background(), testOrder(), "Card declined"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSendEmailClientErrorIsFinal(t *testing.T) {
	var calls int32
	svc := newTestResend(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"validation_error","message":"Invalid from address"}`))
	})

	err := svc.SendPaymentFailed(context.Background(), testOrder(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid from address")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRenderPaymentFailed(t *testing.T) {
	html, text, err := renderPaymentFailed(testOrder(), "Insufficient funds")
	require.NoError(t, err)
	assert.Contains(t, html, "ORD-20300110-000042")
	assert.Contains(t, html, "Insufficient funds")
	assert.Contains(t, text, "Reason: Insufficient funds")

	_, text, err = renderPaymentFailed(testOrder(), "")
	require.NoError(t, err)
	assert.NotContains(t, text, "Reason")
}

func TestRenderOrderConfirmationEscapesHTML(t *testing.T) {
	order := testOrder()
	order.CustomerName = "<script>alert(1)</script>"
	html, _, err := renderOrderConfirmation(order, nil)
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestMockEmailService(t *testing.T) {
	svc := NewMockEmailService(nil)
	ctx := context.Background()

	require.NoError(t, svc.SendOrderConfirmation(ctx, testOrder(), []*models.Booking{{ID: "b1"}, {ID: "b2"}}, []byte("pdf")))
	require.NoError(t, svc.SendPaymentFailed(ctx, testOrder(), "Card declined"))

	sent := svc.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "order_confirmation", sent[0].Kind)
	assert.Equal(t, 2, sent[0].BookingCount)
	assert.True(t, sent[0].HasAttachment)
	assert.Equal(t, "payment_failed", sent[1].Kind)
	assert.Equal(t, "Card declined", sent[1].Reason)
}

func TestGenerateReceipt(t *testing.T) {
	svc := NewReceiptService("Activity Bookings", "https://shop.example.com/")
	order := testOrder()
	start := time.Date(2030, 1, 10, 9, 0, 0, 0, time.UTC)
	bookings := []*models.Booking{{
		ID:            "b1",
		StudentID:     "s1",
		StartDateTime: start,
		EndDateTime:   start.Add(6 * time.Hour),
		Status:        models.BookingConfirmed,
		Student:       &models.StudentDetails{FirstName: "Sam", LastName: "Parent"},
	}}

	pdf, err := svc.GenerateReceipt(order, bookings)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.Greater(t, len(pdf), 1000)

	plain, err := NewReceiptService("Activity Bookings", "").GenerateReceipt(order, nil)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(plain, []byte("%PDF")))
	assert.Less(t, len(plain), len(pdf), "receipt without QR code is smaller")
}
