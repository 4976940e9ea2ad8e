package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"activity-storefront/internal/calendar"
	"activity-storefront/internal/middleware"
	"activity-storefront/internal/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Bookings is the booking surface behind the admin calendar
type Bookings interface {
	CalendarEvents(ctx context.Context, filter calendar.Filter) ([]calendar.Event, error)
	CreateBooking(ctx context.Context, req *models.BookingCreateRequest) (*models.Booking, error)
	Callbacks() calendar.Callbacks
}

// CalendarHandler serves the admin booking calendar
type CalendarHandler struct {
	bookings  Bookings
	callbacks calendar.Callbacks
	now       func() time.Time
	logger    *zap.Logger
}

// NewCalendarHandler creates a new calendar handler
func NewCalendarHandler(bookings Bookings, logger *zap.Logger) *CalendarHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarHandler{
		bookings:  bookings,
		callbacks: bookings.Callbacks(),
		now:       time.Now,
		logger:    logger,
	}
}

// ListEvents returns grouped events for ?start=&end=&view=&productType=&locationId=
func (h *CalendarHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := calendar.ParseFilter(r.URL.Query(), h.now())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	events, err := h.bookings.CalendarEvents(r.Context(), filter)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if events == nil {
		events = []calendar.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// CreateEvent books a manual entry from the calendar
func (h *CalendarHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.BookingCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	booking, err := h.bookings.CreateBooking(r.Context(), &req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Calendar booking created",
		zap.String("booking_id", booking.ID),
		zap.String("staff_id", staffID(r)))
	writeJSON(w, http.StatusCreated, booking)
}

// UpdateEvent applies a reschedule, status or payment update to booking {id}
func (h *CalendarHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, r, h.logger, fmt.Errorf("read body: %w", models.ErrInvalidInput))
		return
	}
	update, err := calendar.DecodeUpdate(body)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	booking, err := h.callbacks.OnEventUpdate(r.Context(), bookingID, update)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Calendar booking updated",
		zap.String("booking_id", bookingID),
		zap.String("update", string(update.Type())),
		zap.String("staff_id", staffID(r)))
	writeJSON(w, http.StatusOK, booking)
}

// DeleteEvent cancels booking {id}
func (h *CalendarHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")

	if err := h.callbacks.OnEventDelete(r.Context(), bookingID); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Calendar booking cancelled",
		zap.String("booking_id", bookingID),
		zap.String("staff_id", staffID(r)))
	writeMessage(w, http.StatusOK, "Booking cancelled")
}

func staffID(r *http.Request) string {
	if claims := middleware.StaffFromContext(r.Context()); claims != nil {
		return claims.StaffID
	}
	return ""
}
