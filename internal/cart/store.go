// Package cart holds the per-session shopping cart: line items, students,
// add-ons and schedules, with derived summary and validation views.
//
// Mutations never fail. Unknown ids are ignored, and problems with the
// current contents are reported through Validation rather than by rejecting
// the call. Every mutation persists the full cart to the configured Storage;
// a failed save is logged and otherwise ignored.
package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"activity-storefront/internal/models"
	"activity-storefront/internal/pricing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSaveTimeout = 5 * time.Second

// Store is the cart engine for one shopping session.
type Store struct {
	mu          sync.Mutex
	storage     Storage
	key         string
	items       []models.EnhancedCartItem
	loading     bool
	lastErr     error
	lastOrderID string
	pendingID   string

	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
	saveTimeout time.Duration
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for persistence failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides item and student id generation (tests).
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// NewStore creates an empty cart persisted to storage under key. Call Load to
// restore a previously saved cart.
func NewStore(storage Storage, key string, opts ...Option) *Store {
	s := &Store{
		storage:     storage,
		key:         key,
		logger:      zap.NewNop(),
		now:         time.Now,
		newID:       uuid.NewString,
		saveTimeout: defaultSaveTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddItemOptions carries the optional selections for a new line item
type AddItemOptions struct {
	Quantity   int
	Date       string
	Dates      []string
	TimeSlot   string
	LocationID string
	Notes      string
}

// AddItem appends a line item for product and returns a copy of it.
func (s *Store) AddItem(product models.Product, opts AddItemOptions) models.EnhancedCartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	quantity := opts.Quantity
	if quantity < 1 {
		quantity = 1
	}

	now := s.now()
	item := models.EnhancedCartItem{
		ID:               s.newID(),
		Product:          product,
		Quantity:         quantity,
		Students:         []models.StudentDetails{},
		AddOns:           []models.SelectedAddOn{},
		SelectedDate:     opts.Date,
		SelectedTimeSlot: opts.TimeSlot,
		LocationID:       opts.LocationID,
		IsEarlyBird:      pricing.IsEarlyBirdEligible(&product, now),
		CreatedAt:        now,
		Notes:            opts.Notes,
	}
	if len(opts.Dates) > 0 {
		item.SelectedDates = append([]string(nil), opts.Dates...)
	}
	item = item.Clone()
	pricing.Reprice(&item)

	s.items = append(s.items, item)
	pricing.ApplySiblingDiscounts(s.items)
	s.persistLocked()

	return s.items[len(s.items)-1].Clone()
}

// RemoveItem removes the item and its students.
func (s *Store) RemoveItem(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(itemID)
	if idx < 0 {
		return
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	pricing.ApplySiblingDiscounts(s.items)
	s.persistLocked()
}

// UpdateQuantity sets the quantity, clamped to at least 1.
func (s *Store) UpdateQuantity(itemID string, quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	s.mutate(itemID, func(item *models.EnhancedCartItem) bool {
		item.Quantity = quantity
		pricing.Reprice(item)
		return true
	})
}

// AddStudent attaches a student to the item. A student without an id gets
// one; a student whose id is already attached replaces the existing entry.
// Capacity is not checked here.
func (s *Store) AddStudent(itemID string, student models.StudentDetails) {
	s.mutate(itemID, func(item *models.EnhancedCartItem) bool {
		if student.ID == "" {
			student.ID = s.newID()
		}
		student.Allergies = append([]string(nil), student.Allergies...)
		if idx := item.FindStudent(student.ID); idx >= 0 {
			item.Students[idx] = student
			return true
		}
		item.Students = append(item.Students, student)
		return true
	})
}

// UpdateStudent replaces an attached student matched by id.
func (s *Store) UpdateStudent(itemID string, student models.StudentDetails) {
	s.mutate(itemID, func(item *models.EnhancedCartItem) bool {
		idx := item.FindStudent(student.ID)
		if idx < 0 {
			return false
		}
		student.Allergies = append([]string(nil), student.Allergies...)
		item.Students[idx] = student
		return true
	})
}

// RemoveStudent detaches a student from the item.
func (s *Store) RemoveStudent(itemID, studentID string) {
	s.mutate(itemID, func(item *models.EnhancedCartItem) bool {
		idx := item.FindStudent(studentID)
		if idx < 0 {
			return false
		}
		item.Students = append(item.Students[:idx], item.Students[idx+1:]...)
		return true
	})
}

// AddItemAddOn sets the quantity of an add-on on the item. A quantity of
// zero or less removes it.
func (s *Store) AddItemAddOn(itemID string, addOn models.AddOn, quantity int) {
	s.mutate(itemID, func(item *models.EnhancedCartItem) bool {
		idx := -1
		for i := range item.AddOns {
			if item.AddOns[i].AddOn.ID == addOn.ID {
				idx = i
				break
			}
		}

		switch {
		case quantity <= 0 && idx < 0:
			return false
		case quantity <= 0:
			item.AddOns = append(item.AddOns[:idx], item.AddOns[idx+1:]...)
		case idx >= 0:
			item.AddOns[idx] = models.SelectedAddOn{AddOn: addOn, Quantity: quantity}
		default:
			item.AddOns = append(item.AddOns, models.SelectedAddOn{AddOn: addOn, Quantity: quantity})
		}
		pricing.Reprice(item)
		return true
	})
}

// UpdateItemDate selects a single date, replacing any date list.
func (s *Store) UpdateItemDate(itemID, date string) {
	s.reschedule(itemID, func(item *models.EnhancedCartItem) {
		item.SelectedDate = date
		item.SelectedDates = nil
	})
}

// UpdateItemDates selects a list of dates, replacing any single date.
func (s *Store) UpdateItemDates(itemID string, dates []string) {
	s.reschedule(itemID, func(item *models.EnhancedCartItem) {
		item.SelectedDates = append([]string(nil), dates...)
		item.SelectedDate = ""
	})
}

// UpdateItemTime selects the time slot.
func (s *Store) UpdateItemTime(itemID, timeSlot string) {
	s.reschedule(itemID, func(item *models.EnhancedCartItem) {
		item.SelectedTimeSlot = timeSlot
	})
}

// UpdateItemNotes replaces the free-text notes.
func (s *Store) UpdateItemNotes(itemID, notes string) {
	s.mutate(itemID, func(item *models.EnhancedCartItem) bool {
		item.Notes = notes
		return true
	})
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.persistLocked()
}

// ClearAfterSuccess is the terminal transition once an order is paid. It
// empties the cart and removes the durable copy before returning, so a
// reload cannot bring the paid cart back.
func (s *Store) ClearAfterSuccess(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.lastOrderID = orderID
	s.pendingID = ""

	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()

	if err := s.storage.Delete(ctx, s.key); err != nil {
		s.lastErr = err
		s.logger.Error("Failed to delete paid cart, overwriting with empty cart",
			zap.String("cart_key", s.key),
			zap.String("order_id", orderID),
			zap.Error(err))
		s.persistLocked()
	}
}

// LastOrderID is the order the cart was last cleared for.
func (s *Store) LastOrderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOrderID
}

// PendingOrderID is the unpaid order opened by the last checkout attempt.
func (s *Store) PendingOrderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingID
}

// SetPendingOrder records the unpaid order opened for this cart so a repeated
// checkout updates it instead of opening another.
func (s *Store) SetPendingOrder(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingID == orderID {
		return
	}
	s.pendingID = orderID
	s.persistLocked()
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []models.EnhancedCartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.EnhancedCartItem, len(s.items))
	for i := range s.items {
		out[i] = s.items[i].Clone()
	}
	return out
}

// Item returns a copy of one line item.
func (s *Store) Item(itemID string) (models.EnhancedCartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(itemID)
	if idx < 0 {
		return models.EnhancedCartItem{}, false
	}
	return s.items[idx].Clone(), true
}

// IsEmpty reports whether the cart has no items.
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) == 0
}

// Summary derives totals from the current items.
func (s *Store) Summary() models.CartSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Summarize(s.items)
}

// Validation derives the current rule violations.
func (s *Store) Validation() models.CartValidation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return validate(s.items, s.now())
}

// Loading reports whether a Load is in progress.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastError is the most recent storage failure, if any.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Load replaces the in-memory cart with the stored one. Missing, unreadable
// or corrupt data leaves an empty cart; Load never fails.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	data, err := s.storage.Load(ctx, s.key)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.items = nil

	if errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		s.lastErr = err
		s.logger.Warn("Failed to read stored cart, starting empty",
			zap.String("cart_key", s.key),
			zap.Error(err))
		return
	}

	env, err := decode(data)
	if err != nil {
		s.lastErr = err
		s.logger.Warn("Discarding corrupt stored cart",
			zap.String("cart_key", s.key),
			zap.Error(err))
		return
	}

	s.items = env.Items
	s.lastOrderID = env.LastOrderID
	s.pendingID = env.PendingOrderID
	for i := range s.items {
		pricing.Reprice(&s.items[i])
	}
	pricing.ApplySiblingDiscounts(s.items)
}

// Save writes the cart to storage and reports the outcome.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

func (s *Store) saveLocked(ctx context.Context) error {
	data, err := encode(envelope{
		Items:          s.items,
		LastOrderID:    s.lastOrderID,
		PendingOrderID: s.pendingID,
		SavedAt:        s.now(),
	})
	if err != nil {
		return err
	}
	return s.storage.Save(ctx, s.key, data)
}

// persistLocked is the best-effort save run after every mutation.
func (s *Store) persistLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()

	if err := s.saveLocked(ctx); err != nil {
		s.lastErr = err
		s.logger.Error("Failed to persist cart",
			zap.String("cart_key", s.key),
			zap.Error(err))
	}
}

func (s *Store) indexLocked(itemID string) int {
	for i := range s.items {
		if s.items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// mutate applies fn to the item and persists when fn reports a change.
func (s *Store) mutate(itemID string, fn func(item *models.EnhancedCartItem) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(itemID)
	if idx < 0 {
		return
	}
	if fn(&s.items[idx]) {
		s.persistLocked()
	}
}

// reschedule changes scheduling fields; the unit price only moves through
// the sibling rule because grouping keys may have changed.
func (s *Store) reschedule(itemID string, fn func(item *models.EnhancedCartItem)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(itemID)
	if idx < 0 {
		return
	}
	fn(&s.items[idx])
	pricing.ApplySiblingDiscounts(s.items)
	s.persistLocked()
}
