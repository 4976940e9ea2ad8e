package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"activity-storefront/internal/models"
	"activity-storefront/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrderReader loads an order with its bookings
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*services.OrderDetails, error)
}

// ReceiptGenerator renders a paid order as a PDF
type ReceiptGenerator interface {
	GenerateReceipt(order *models.Order, bookings []*models.Booking) ([]byte, error)
}

// OrderHandler serves order confirmation pages and receipts
type OrderHandler struct {
	orders   OrderReader
	receipts ReceiptGenerator
	logger   *zap.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders OrderReader, receipts ReceiptGenerator, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{orders: orders, receipts: receipts, logger: logger}
}

// GetOrder returns order {id} with its items and bookings
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	details, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if details.Bookings == nil {
		details.Bookings = []*models.Booking{}
	}
	writeJSON(w, http.StatusOK, details)
}

// Receipt streams the PDF receipt of a completed order
func (h *OrderHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	details, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if details.Order.Status != models.OrderCompleted {
		respondError(w, r, h.logger, fmt.Errorf("receipt for %s order: %w", details.Order.Status, models.ErrOrderNotFound))
		return
	}

	pdf, err := h.receipts.GenerateReceipt(details.Order, details.Bookings)
	if err != nil {
		respondError(w, r, h.logger, fmt.Errorf("generate receipt: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="receipt-%s.pdf"`, details.Order.OrderNumber))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		h.logger.Warn("Failed to write receipt", zap.String("order_id", details.Order.ID), zap.Error(err))
	}
}
