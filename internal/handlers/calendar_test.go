package handlers

import (
	"net/http"
	"testing"
	"time"

	"activity-storefront/internal/calendar"
	"activity-storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const staffAuth = "Bearer staff-token"

func TestCalendarRequiresStaff(t *testing.T) {
	h := newHarness(t)

	rr := h.do(http.MethodGet, "/api/calendar/events", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = h.do(http.MethodGet, "/api/calendar/events", nil, "Authorization", "Bearer forged")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCalendarListEvents(t *testing.T) {
	h := newHarness(t)
	h.bookings.events = []calendar.Event{{ID: "camp-1_loc-1_1", Title: "Holiday Robotics Camp"}}

	rr := h.do(http.MethodGet,
		"/api/calendar/events?start=2030-01-01&end=2030-02-01&view=dayGridMonth&productType=CAMP&locationId=loc-1",
		nil, "Authorization", staffAuth)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var events []calendar.Event
	decodeData(t, rr, &events)
	require.Len(t, events, 1)
	assert.Equal(t, "Holiday Robotics Camp", events[0].Title)

	f := h.bookings.lastFilter
	assert.Equal(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), f.Start)
	assert.Equal(t, time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC), f.End)
	assert.Equal(t, models.ProductCamp, f.ProductType)
	assert.Equal(t, "loc-1", f.LocationID)
}

func TestCalendarListEventsBadFilter(t *testing.T) {
	h := newHarness(t)

	rr := h.do(http.MethodGet, "/api/calendar/events?start=yesterday", nil, "Authorization", staffAuth)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	decodeFailure(t, rr)
}

func TestCalendarCreateEvent(t *testing.T) {
	h := newHarness(t)
	start := time.Date(2030, 1, 14, 9, 0, 0, 0, time.UTC)

	req := models.BookingCreateRequest{
		StudentID:     "student-1",
		ProductID:     "camp-1",
		LocationID:    "loc-1",
		StartDateTime: start,
		EndDateTime:   start.Add(6 * time.Hour),
		TotalAmount:   decimal.NewFromInt(100),
	}
	rr := h.do(http.MethodPost, "/api/calendar/events", req, "Authorization", staffAuth)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var booking models.Booking
	decodeData(t, rr, &booking)
	assert.Equal(t, "booking-new", booking.ID)
	assert.Equal(t, models.BookingPending, booking.Status)
	require.Len(t, h.bookings.created, 1)
	assert.Equal(t, "student-1", h.bookings.created[0].StudentID)
}

func TestCalendarCreateEventFull(t *testing.T) {
	h := newHarness(t)
	h.bookings.createErr = models.ErrCapacityExceeded

	rr := h.do(http.MethodPost, "/api/calendar/events", models.BookingCreateRequest{ProductID: "camp-1"}, "Authorization", staffAuth)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCalendarUpdateEvent(t *testing.T) {
	h := newHarness(t)

	rr := h.do(http.MethodPatch, "/api/calendar/events/booking-7",
		`{"type":"status","status":"CONFIRMED"}`, "Authorization", staffAuth)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	update, ok := h.bookings.updates["booking-7"]
	require.True(t, ok)
	change, ok := update.(calendar.StatusChange)
	require.True(t, ok)
	assert.Equal(t, models.BookingConfirmed, change.Status)
}

func TestCalendarUpdateEventRejects(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"unknown type", `{"type":"teleport"}`, nil, http.StatusBadRequest},
		{"invalid status", `{"type":"status","status":"PARTYING"}`, nil, http.StatusBadRequest},
		{"not json", `status=CONFIRMED`, nil, http.StatusBadRequest},
		{"terminal booking", `{"type":"status","status":"CONFIRMED"}`, models.ErrBookingTerminal, http.StatusConflict},
		{"missing booking", `{"type":"status","status":"CONFIRMED"}`, models.ErrBookingNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.bookings.updateErr = tt.err
			rr := h.do(http.MethodPatch, "/api/calendar/events/booking-7", tt.body, "Authorization", staffAuth)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}
}

func TestCalendarDeleteEvent(t *testing.T) {
	h := newHarness(t)

	rr := h.do(http.MethodDelete, "/api/calendar/events/booking-7", nil, "Authorization", staffAuth)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"booking-7"}, h.bookings.deleted)

	rr = h.do(http.MethodDelete, "/api/calendar/events/missing", nil, "Authorization", staffAuth)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
