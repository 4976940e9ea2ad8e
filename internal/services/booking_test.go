package services

import (
	"context"
	"testing"
	"time"

	"activity-storefront/internal/calendar"
	"activity-storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingFixture struct {
	db       *fakeDB
	svc      *BookingService
	camp     *models.Product
	party    *models.Product
	location *models.Location
	start    time.Time
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	db := newFakeDB()
	camp := &models.Product{ID: uuid.NewString(), Name: "Robotics Camp", Type: models.ProductCamp, Capacity: 2, Active: true}
	party := &models.Product{ID: uuid.NewString(), Name: "Science Party", Type: models.ProductBirthday, Capacity: 20, Active: true}
	location := &models.Location{ID: uuid.NewString(), Name: "Fitzroy", Active: true}
	db.products[camp.ID] = camp
	db.products[party.ID] = party
	db.locations[location.ID] = location

	return &bookingFixture{
		db:       db,
		svc:      NewBookingService(fakeBookings{db}, fakeProducts{db}, fakeLocations{db}, fakeOrders{db}, nil),
		camp:     camp,
		party:    party,
		location: location,
		start:    time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC),
	}
}

func (f *bookingFixture) request(product *models.Product) *models.BookingCreateRequest {
	return &models.BookingCreateRequest{
		StudentID:     uuid.NewString(),
		ProductID:     product.ID,
		LocationID:    f.location.ID,
		StartDateTime: f.start,
		EndDateTime:   f.start.Add(3 * time.Hour),
		TotalAmount:   decimal.NewFromInt(80),
	}
}

func TestCreateBookingCapacity(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		b, err := f.svc.CreateBooking(ctx, f.request(f.camp))
		require.NoError(t, err)
		assert.Equal(t, models.BookingPending, b.Status)
		assert.Equal(t, models.PaymentPending, b.PaymentStatus)
	}

	_, err := f.svc.CreateBooking(ctx, f.request(f.camp))
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)

	cancelled := f.request(f.camp)
	cancelled.Status = models.BookingCancelled
	_, err = f.svc.CreateBooking(ctx, cancelled)
	assert.NoError(t, err, "a cancelled booking takes no place")
}

func TestCreateBookingValidation(t *testing.T) {
	f := newBookingFixture(t)

	req := f.request(f.camp)
	req.EndDateTime = req.StartDateTime
	_, err := f.svc.CreateBooking(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	req = f.request(f.camp)
	req.AmountPaid = decimal.NewFromInt(81)
	_, err = f.svc.CreateBooking(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	req = f.request(f.camp)
	req.ProductID = uuid.NewString()
	_, err = f.svc.CreateBooking(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestCalendarEvents(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.CreateBooking(ctx, f.request(f.camp))
		require.NoError(t, err)
	}
	_, err := f.svc.CreateBooking(ctx, f.request(f.party))
	require.NoError(t, err)

	filter := calendar.Filter{
		Start: time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2030, 4, 1, 0, 0, 0, 0, time.UTC),
		View:  calendar.ViewMonth,
	}
	events, err := f.svc.CalendarEvents(ctx, filter)
	require.NoError(t, err)
	require.Len(t, events, 2)

	byProduct := map[string]calendar.Event{}
	for _, ev := range events {
		byProduct[ev.ExtendedProps.ProductID] = ev
	}
	camp := byProduct[f.camp.ID]
	assert.Equal(t, 2, camp.ExtendedProps.CurrentBookings)
	assert.Equal(t, 0, camp.ExtendedProps.AvailableSpots)
	assert.Equal(t, "Fitzroy", camp.ExtendedProps.LocationName)
	assert.Equal(t, 19, byProduct[f.party.ID].ExtendedProps.AvailableSpots)

	filter.ProductType = models.ProductBirthday
	events, err = f.svc.CalendarEvents(ctx, filter)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, f.party.ID, events[0].ExtendedProps.ProductID)

	filter.End = filter.Start
	_, err = f.svc.CalendarEvents(ctx, filter)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestApplyUpdate(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateBooking(ctx, f.request(f.camp))
	require.NoError(t, err)

	t.Run("reschedule", func(t *testing.T) {
		next := f.start.AddDate(0, 0, 1)
		b, err := f.svc.ApplyUpdate(ctx, first.ID, calendar.Reschedule{Start: next, End: next.Add(2 * time.Hour)})
		require.NoError(t, err)
		assert.Equal(t, next, b.StartDateTime)
		assert.Equal(t, 2*time.Hour, b.Duration())
	})

	t.Run("reschedule into a full slot", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := f.svc.CreateBooking(ctx, f.request(f.camp))
			require.NoError(t, err)
		}
		_, err := f.svc.ApplyUpdate(ctx, first.ID, calendar.Reschedule{Start: f.start, End: f.start.Add(3 * time.Hour)})
		assert.ErrorIs(t, err, models.ErrCapacityExceeded)
	})

	t.Run("payment settles total", func(t *testing.T) {
		b, err := f.svc.ApplyUpdate(ctx, first.ID, calendar.PaymentStatusChange{PaymentStatus: models.PaymentPaid})
		require.NoError(t, err)
		assert.True(t, b.AmountPaid.Equal(decimal.NewFromInt(80)))
	})

	t.Run("terminal booking rejects status change", func(t *testing.T) {
		_, err := f.svc.ApplyUpdate(ctx, first.ID, calendar.StatusChange{Status: models.BookingCompleted})
		require.NoError(t, err)

		_, err = f.svc.ApplyUpdate(ctx, first.ID, calendar.StatusChange{Status: models.BookingConfirmed})
		assert.ErrorIs(t, err, models.ErrBookingTerminal)
	})

	t.Run("unknown booking", func(t *testing.T) {
		_, err := f.svc.ApplyUpdate(ctx, uuid.NewString(), calendar.StatusChange{Status: models.BookingConfirmed})
		assert.ErrorIs(t, err, models.ErrBookingNotFound)
	})
}

func TestDeleteBookingCancels(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, f.request(f.camp))
	require.NoError(t, err)

	callbacks := f.svc.Callbacks()
	require.NoError(t, callbacks.OnEventDelete(ctx, b.ID))
	require.NoError(t, callbacks.OnEventDelete(ctx, b.ID))

	stored, err := fakeBookings{f.db}.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, stored.Status)

	completed, err := f.svc.CreateBooking(ctx, f.request(f.camp))
	require.NoError(t, err)
	_, err = callbacks.OnEventUpdate(ctx, completed.ID, calendar.StatusChange{Status: models.BookingCompleted})
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.DeleteBooking(ctx, completed.ID), models.ErrBookingTerminal)
}

func TestGetOrder(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetOrder(ctx, uuid.NewString())
	assert.ErrorIs(t, err, models.ErrOrderNotFound)

	order := &models.Order{ID: uuid.NewString(), OrderNumber: "ORD-20300101-000001", Status: models.OrderCompleted}
	f.db.orders[order.ID] = order
	b, err := f.svc.CreateBooking(ctx, f.request(f.camp))
	require.NoError(t, err)
	f.db.bookings[b.ID].OrderID = &order.ID

	details, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, details.Order.OrderNumber)
	require.Len(t, details.Bookings, 1)
	assert.Equal(t, b.ID, details.Bookings[0].ID)
}
