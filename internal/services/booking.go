package services

import (
	"context"
	"fmt"

	"activity-storefront/internal/calendar"
	"activity-storefront/internal/models"
	"activity-storefront/internal/repositories"

	"go.uber.org/zap"
)

// OrderDetails is an order with the bookings created for it
type OrderDetails struct {
	Order    *models.Order     `json:"order"`
	Bookings []*models.Booking `json:"bookings"`
}

// BookingService backs the admin calendar
type BookingService struct {
	bookings  BookingRepository
	products  ProductRepository
	locations LocationRepository
	orders    OrderRepository
	logger    *zap.Logger
}

// NewBookingService creates a new booking service
func NewBookingService(bookings BookingRepository, products ProductRepository, locations LocationRepository, orders OrderRepository, logger *zap.Logger) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		bookings:  bookings,
		products:  products,
		locations: locations,
		orders:    orders,
		logger:    logger,
	}
}

// Callbacks wires the calendar's update and delete hooks to this service.
func (s *BookingService) Callbacks() calendar.Callbacks {
	return calendar.Callbacks{
		OnEventUpdate: s.ApplyUpdate,
		OnEventDelete: s.DeleteBooking,
	}
}

// CalendarEvents returns the grouped calendar events inside filter
func (s *BookingService) CalendarEvents(ctx context.Context, filter calendar.Filter) ([]calendar.Event, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	found, err := s.bookings.FindByRange(ctx, repositories.BookingFilter{
		Start:       filter.Start,
		End:         filter.End,
		ProductType: filter.ProductType,
		LocationID:  filter.LocationID,
	})
	if err != nil {
		return nil, err
	}

	products, err := s.productIndex(ctx)
	if err != nil {
		return nil, err
	}
	locations, err := s.locationIndex(ctx)
	if err != nil {
		return nil, err
	}

	bookings := make([]models.Booking, 0, len(found))
	for _, b := range found {
		p, ok := products[b.ProductID]
		if !filter.Matches(b, productOrNil(p, ok)) {
			continue
		}
		bookings = append(bookings, *b)
	}

	return calendar.GroupBookings(bookings, products, locations), nil
}

// CreateBooking validates req and books it if the slot still has room
func (s *BookingService) CreateBooking(ctx context.Context, req *models.BookingCreateRequest) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	b := req.ToBooking()

	capacity, err := s.slotCapacity(ctx, b.ProductID, b.LocationID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCapacity(ctx, b, capacity); err != nil {
		return nil, err
	}

	created, err := s.bookings.Create(ctx, b)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking created",
		zap.String("booking_id", created.ID),
		zap.String("product_id", created.ProductID),
		zap.Time("start", created.StartDateTime))
	return created, nil
}

// ApplyUpdate applies a calendar update to one booking
func (s *BookingService) ApplyUpdate(ctx context.Context, bookingID string, update calendar.EventUpdate) (*models.Booking, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	before := *b

	if err := update.Apply(b); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	moved := !b.StartDateTime.Equal(before.StartDateTime) || !b.EndDateTime.Equal(before.EndDateTime)
	if moved && b.Status.Active() {
		capacity, err := s.slotCapacity(ctx, b.ProductID, b.LocationID)
		if err != nil {
			return nil, err
		}
		if err := s.checkCapacity(ctx, b, capacity); err != nil {
			return nil, err
		}
	}

	updated, err := s.bookings.Update(ctx, b)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking updated",
		zap.String("booking_id", bookingID),
		zap.String("update", string(update.Type())))
	return updated, nil
}

// DeleteBooking cancels a booking. The row is kept for reporting.
func (s *BookingService) DeleteBooking(ctx context.Context, bookingID string) error {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Status == models.BookingCancelled {
		return nil
	}

	if err := (calendar.StatusChange{Status: models.BookingCancelled}).Apply(b); err != nil {
		return err
	}
	if _, err := s.bookings.Update(ctx, b); err != nil {
		return err
	}

	s.logger.Info("Booking cancelled", zap.String("booking_id", bookingID))
	return nil
}

// GetOrder returns an order with its items and bookings
func (s *BookingService) GetOrder(ctx context.Context, orderID string) (*OrderDetails, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	bookings, err := s.bookings.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderDetails{Order: order, Bookings: bookings}, nil
}

// slotCapacity is the lower of the product and location capacities, 0 when neither is set.
func (s *BookingService) slotCapacity(ctx context.Context, productID, locationID string) (int, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return 0, err
	}
	location, err := s.locations.GetByID(ctx, locationID)
	if err != nil {
		return 0, err
	}

	capacity := product.Capacity
	if location.Capacity > 0 && (capacity == 0 || location.Capacity < capacity) {
		capacity = location.Capacity
	}
	return capacity, nil
}

func (s *BookingService) checkCapacity(ctx context.Context, b *models.Booking, capacity int) error {
	if capacity <= 0 || !b.Status.Active() {
		return nil
	}
	taken, err := s.bookings.CountActiveInSlot(ctx, b.ProductID, b.LocationID, b.StartDateTime, b.EndDateTime)
	if err != nil {
		return err
	}
	if taken >= capacity {
		return fmt.Errorf("%d of %d places taken: %w", taken, capacity, models.ErrCapacityExceeded)
	}
	return nil
}

func (s *BookingService) productIndex(ctx context.Context) (map[string]models.Product, error) {
	list, err := s.products.List(ctx, repositories.ProductFilter{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Product, len(list))
	for _, p := range list {
		out[p.ID] = *p
	}
	return out, nil
}

func (s *BookingService) locationIndex(ctx context.Context) (map[string]models.Location, error) {
	list, err := s.locations.List(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Location, len(list))
	for _, l := range list {
		out[l.ID] = *l
	}
	return out, nil
}

func productOrNil(p models.Product, ok bool) *models.Product {
	if !ok {
		return nil
	}
	return &p
}
