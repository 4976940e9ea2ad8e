package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"activity-storefront/internal/models"
	"activity-storefront/internal/repositories"

	"github.com/google/uuid"
)

// fakeDB is an in-memory stand-in for the Postgres repositories
type fakeDB struct {
	mu        sync.Mutex
	products  map[string]*models.Product
	locations map[string]*models.Location
	templates []*models.RecurringTemplate
	orders    map[string]*models.Order
	bookings  map[string]*models.Booking
	students  map[string]models.StudentDetails
	staff     map[string]*models.Staff
	imageURLs map[string]string
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		products:  make(map[string]*models.Product),
		locations: make(map[string]*models.Location),
		orders:    make(map[string]*models.Order),
		bookings:  make(map[string]*models.Booking),
		students:  make(map[string]models.StudentDetails),
		staff:     make(map[string]*models.Staff),
		imageURLs: make(map[string]string),
	}
}

type fakeProducts struct{ db *fakeDB }
type fakeLocations struct{ db *fakeDB }
type fakeTemplates struct{ db *fakeDB }
type fakeOrders struct{ db *fakeDB }
type fakeBookings struct{ db *fakeDB }
type fakeStaff struct{ db *fakeDB }

func (f fakeProducts) List(ctx context.Context, filter repositories.ProductFilter) ([]*models.Product, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*models.Product
	for _, p := range f.db.products {
		if filter.Type != "" && p.Type != filter.Type {
			continue
		}
		if filter.ActiveOnly && !p.Active {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f fakeProducts) GetByID(ctx context.Context, id string) (*models.Product, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.products[id]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	c := *p
	return &c, nil
}

func (f fakeProducts) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c := *p
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	f.db.products[c.ID] = &c
	out := c
	return &out, nil
}

func (f fakeProducts) Update(ctx context.Context, p *models.Product) (*models.Product, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.products[p.ID]; !ok {
		return nil, models.ErrProductNotFound
	}
	c := *p
	f.db.products[p.ID] = &c
	out := c
	return &out, nil
}

func (f fakeProducts) SetImageURL(ctx context.Context, id, imageURL string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.products[id]
	if !ok {
		return models.ErrProductNotFound
	}
	p.ImageURL = imageURL
	f.db.imageURLs[id] = imageURL
	return nil
}

func (f fakeLocations) List(ctx context.Context, activeOnly bool) ([]*models.Location, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*models.Location
	for _, l := range f.db.locations {
		if activeOnly && !l.Active {
			continue
		}
		c := *l
		out = append(out, &c)
	}
	return out, nil
}

func (f fakeLocations) GetByID(ctx context.Context, id string) (*models.Location, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	l, ok := f.db.locations[id]
	if !ok {
		return nil, models.ErrLocationNotFound
	}
	c := *l
	return &c, nil
}

func (f fakeTemplates) ListByProduct(ctx context.Context, productID string) ([]*models.RecurringTemplate, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*models.RecurringTemplate
	for _, t := range f.db.templates {
		if t.ProductID == productID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f fakeOrders) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c := *order
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	for _, item := range c.Items {
		item.ID = uuid.NewString()
		item.OrderID = c.ID
	}
	f.db.orders[c.ID] = &c
	out := c
	return &out, nil
}

func (f fakeOrders) GetByID(ctx context.Context, id string) (*models.Order, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	o, ok := f.db.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	c := *o
	return &c, nil
}

func (f fakeOrders) GetByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, o := range f.db.orders {
		if o.PaymentIntentID == intentID {
			c := *o
			return &c, nil
		}
	}
	return nil, models.ErrOrderNotFound
}

func (f fakeOrders) SetPaymentIntent(ctx context.Context, orderID, intentID string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	o, ok := f.db.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	o.PaymentIntentID = intentID
	return nil
}

func (f fakeOrders) ReplacePending(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	o, ok := f.db.orders[order.ID]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	if o.Status != models.OrderPending {
		return nil, models.ErrOrderClosed
	}
	o.Subtotal, o.Tax, o.Total = order.Subtotal, order.Tax, order.Total
	o.CustomerName, o.CustomerEmail, o.CustomerPhone = order.CustomerName, order.CustomerEmail, order.CustomerPhone
	o.Items = nil
	for _, item := range order.Items {
		c := *item
		c.ID = uuid.NewString()
		c.OrderID = o.ID
		o.Items = append(o.Items, &c)
	}
	out := *o
	return &out, nil
}

func (f fakeOrders) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	o, ok := f.db.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (f fakeOrders) Complete(ctx context.Context, orderID string, drafts []repositories.BookingDraft) (*repositories.CompletedOrder, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	o, ok := f.db.orders[orderID]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	switch o.Status {
	case models.OrderCompleted:
		c := *o
		return &repositories.CompletedOrder{Order: &c, Bookings: f.db.byOrderLocked(orderID), AlreadyCompleted: true}, nil
	case models.OrderRefunded:
		return nil, models.ErrOrderClosed
	}

	var created []*models.Booking
	for _, d := range drafts {
		b := d.Booking
		if d.Capacity > 0 && f.db.countLocked(b.ProductID, b.LocationID, b.StartDateTime, b.EndDateTime)+countIn(created, &b) >= d.Capacity {
			return nil, fmt.Errorf("slot full: %w", models.ErrCapacityExceeded)
		}
		student := d.Student
		if _, err := uuid.Parse(student.ID); err != nil {
			student.ID = uuid.NewString()
		}
		b.ID = uuid.NewString()
		b.StudentID = student.ID
		b.OrderID = &o.ID
		b.Student = &student
		created = append(created, &b)
	}
	for _, b := range created {
		f.db.students[b.StudentID] = *b.Student
		f.db.bookings[b.ID] = b
	}
	o.Status = models.OrderCompleted
	c := *o
	return &repositories.CompletedOrder{Order: &c, Bookings: created}, nil
}

func countIn(bookings []*models.Booking, b *models.Booking) int {
	n := 0
	for _, other := range bookings {
		if other.ProductID == b.ProductID && other.LocationID == b.LocationID &&
			other.StartDateTime.Equal(b.StartDateTime) && other.EndDateTime.Equal(b.EndDateTime) {
			n++
		}
	}
	return n
}

func (db *fakeDB) countLocked(productID, locationID string, start, end time.Time) int {
	n := 0
	for _, b := range db.bookings {
		if b.ProductID == productID && b.LocationID == locationID &&
			b.StartDateTime.Equal(start) && b.EndDateTime.Equal(end) && b.Status.Active() {
			n++
		}
	}
	return n
}

func (db *fakeDB) byOrderLocked(orderID string) []*models.Booking {
	var out []*models.Booking
	for _, b := range db.bookings {
		if b.OrderID != nil && *b.OrderID == orderID {
			c := *b
			out = append(out, &c)
		}
	}
	return out
}

func (f fakeBookings) FindByRange(ctx context.Context, filter repositories.BookingFilter) ([]*models.Booking, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []*models.Booking
	for _, b := range f.db.bookings {
		if !b.StartDateTime.Before(filter.End) || !b.EndDateTime.After(filter.Start) {
			continue
		}
		if !filter.IncludeCancelled && b.Status == models.BookingCancelled {
			continue
		}
		c := *b
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDateTime.Before(out[j].StartDateTime) })
	return out, nil
}

func (f fakeBookings) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	b, ok := f.db.bookings[id]
	if !ok {
		return nil, models.ErrBookingNotFound
	}
	c := *b
	return &c, nil
}

func (f fakeBookings) ListByOrder(ctx context.Context, orderID string) ([]*models.Booking, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.byOrderLocked(orderID), nil
}

func (f fakeBookings) CountActiveInSlot(ctx context.Context, productID, locationID string, start, end time.Time) (int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.countLocked(productID, locationID, start, end), nil
}

func (f fakeBookings) Create(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c := *b
	c.ID = uuid.NewString()
	f.db.bookings[c.ID] = &c
	out := c
	return &out, nil
}

func (f fakeBookings) Update(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.bookings[b.ID]; !ok {
		return nil, models.ErrBookingNotFound
	}
	c := *b
	f.db.bookings[b.ID] = &c
	out := c
	return &out, nil
}

func (f fakeBookings) SetOrderPaymentStatus(ctx context.Context, orderID string, status models.PaymentStatus) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for _, b := range f.db.bookings {
		if b.OrderID != nil && *b.OrderID == orderID {
			b.PaymentStatus = status
			n++
		}
	}
	return n, nil
}

func (f fakeStaff) GetByEmail(ctx context.Context, email string) (*models.Staff, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, s := range f.db.staff {
		if s.Email == email {
			c := *s
			return &c, nil
		}
	}
	return nil, models.ErrStaffNotFound
}

func (f fakeStaff) GetByID(ctx context.Context, id string) (*models.Staff, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.staff[id]
	if !ok {
		return nil, models.ErrStaffNotFound
	}
	c := *s
	return &c, nil
}

// fakeCart is a fixed cart that records ClearAfterSuccess
type fakeCart struct {
	items      []models.EnhancedCartItem
	summary    models.CartSummary
	validation models.CartValidation
	clearedFor string
	pendingID  string
}

func (c *fakeCart) Items() []models.EnhancedCartItem  { return c.items }
func (c *fakeCart) Summary() models.CartSummary       { return c.summary }
func (c *fakeCart) Validation() models.CartValidation { return c.validation }
func (c *fakeCart) PendingOrderID() string            { return c.pendingID }
func (c *fakeCart) SetPendingOrder(orderID string)    { c.pendingID = orderID }

func (c *fakeCart) ClearAfterSuccess(orderID string) {
	c.clearedFor = orderID
	c.pendingID = ""
	c.items = nil
}
