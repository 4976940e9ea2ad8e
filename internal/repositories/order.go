package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"activity-storefront/internal/models"

	"github.com/lib/pq"
)

// OrderRepository handles order data operations
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// BookingDraft is one booking to write when an order completes, together with
// the student it is for and the slot capacity to enforce (0 means unlimited).
type BookingDraft struct {
	Student  models.StudentDetails
	Booking  models.Booking
	Capacity int
}

// CompletedOrder is the outcome of Complete
type CompletedOrder struct {
	Order            *models.Order
	Bookings         []*models.Booking
	AlreadyCompleted bool
}

const orderColumns = `
	id, order_number, status, subtotal, tax, total, currency, payment_intent_id,
	customer_name, customer_email, customer_phone, created_at, updated_at`

func scanOrder(row rowScanner) (*models.Order, error) {
	o := &models.Order{}
	var intentID sql.NullString
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.Status,
		&o.Subtotal,
		&o.Tax,
		&o.Total,
		&o.Currency,
		&intentID,
		&o.CustomerName,
		&o.CustomerEmail,
		&o.CustomerPhone,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentIntentID = intentID.String
	return o, nil
}

// Create creates a pending order and its items in a single transaction
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	orderNumber := models.GenerateOrderNumber()

	// Ensure order number is unique (retry if collision)
	for i := 0; i < 5; i++ {
		var exists bool
		err = tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM orders WHERE order_number = $1)", orderNumber).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check order number uniqueness: %w", err)
		}
		if !exists {
			break
		}
		orderNumber = models.GenerateOrderNumber()
	}

	order.OrderNumber = orderNumber
	if order.Status == "" {
		order.Status = models.OrderPending
	}
	if err := order.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO orders (order_number, status, subtotal, tax, total, currency, payment_intent_id,
			customer_name, customer_email, customer_phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + orderColumns

	created, err := scanOrder(tx.QueryRowContext(ctx, query,
		order.OrderNumber,
		order.Status,
		order.Subtotal,
		order.Tax,
		order.Total,
		order.Currency,
		nullString(order.PaymentIntentID),
		order.CustomerName,
		order.CustomerEmail,
		order.CustomerPhone,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create order: %w", models.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for _, item := range order.Items {
		saved, err := insertOrderItem(ctx, tx, created.ID, item)
		if err != nil {
			return nil, err
		}
		created.Items = append(created.Items, saved)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order creation: %w", err)
	}
	return created, nil
}

func insertOrderItem(ctx context.Context, q querier, orderID string, item *models.OrderItem) (*models.OrderItem, error) {
	students, err := json.Marshal(orEmpty(item.Students))
	if err != nil {
		return nil, fmt.Errorf("failed to encode item students: %w", err)
	}
	addOns, err := json.Marshal(orEmpty(item.AddOns))
	if err != nil {
		return nil, fmt.Errorf("failed to encode item add-ons: %w", err)
	}

	saved := *item
	saved.OrderID = orderID
	err = q.QueryRowContext(ctx, `
		INSERT INTO order_items (order_id, product_id, product_name, location_id, quantity,
			unit_price, total_price, selected_dates, time_slot, students, add_ons, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		orderID,
		item.ProductID,
		item.ProductName,
		nullString(item.LocationID),
		item.Quantity,
		item.UnitPrice,
		item.TotalPrice,
		pq.Array(item.SelectedDates),
		item.TimeSlot,
		students,
		addOns,
		item.Notes,
	).Scan(&saved.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create order item: %w", err)
	}
	return &saved, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// GetByID retrieves an order with its items
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", id, models.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if o.Items, err = listOrderItems(ctx, r.db, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

// GetByPaymentIntentID retrieves the order a payment intent was created for
func (r *OrderRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE payment_intent_id = $1", intentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment intent %s: %w", intentID, models.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to get order by payment intent: %w", err)
	}
	if o.Items, err = listOrderItems(ctx, r.db, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func listOrderItems(ctx context.Context, q querier, orderID string) ([]*models.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, location_id, quantity, unit_price,
			total_price, selected_dates, time_slot, students, add_ons, notes
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_name, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	var items []*models.OrderItem
	for rows.Next() {
		item := &models.OrderItem{}
		var (
			locationID sql.NullString
			students   []byte
			addOns     []byte
		)
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&locationID,
			&item.Quantity,
			&item.UnitPrice,
			&item.TotalPrice,
			pq.Array(&item.SelectedDates),
			&item.TimeSlot,
			&students,
			&addOns,
			&item.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.LocationID = locationID.String
		if err := json.Unmarshal(students, &item.Students); err != nil {
			return nil, fmt.Errorf("failed to decode item students: %w", err)
		}
		if err := json.Unmarshal(addOns, &item.AddOns); err != nil {
			return nil, fmt.Errorf("failed to decode item add-ons: %w", err)
		}
		for _, s := range item.Students {
			item.StudentIDs = append(item.StudentIDs, s.ID)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetPaymentIntent records the payment intent created for an order
func (r *OrderRepository) SetPaymentIntent(ctx context.Context, orderID, intentID string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE orders SET payment_intent_id = $2, updated_at = NOW() WHERE id = $1", orderID, intentID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("payment intent %s: %w", intentID, models.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to set payment intent: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("order %s: %w", orderID, models.ErrOrderNotFound)
	}
	return nil
}

// ReplacePending rewrites the totals, customer and items of a pending order
// in place. Orders that have left pending return ErrOrderClosed.
func (r *OrderRepository) ReplacePending(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := order.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	updated, err := scanOrder(tx.QueryRowContext(ctx, `
		UPDATE orders
		SET subtotal = $2, tax = $3, total = $4, customer_name = $5, customer_email = $6,
			customer_phone = $7, updated_at = NOW()
		WHERE id = $1 AND status = $8
		RETURNING `+orderColumns,
		order.ID,
		order.Subtotal,
		order.Tax,
		order.Total,
		order.CustomerName,
		order.CustomerEmail,
		order.CustomerPhone,
		models.OrderPending,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s is not pending: %w", order.ID, models.ErrOrderClosed)
		}
		return nil, fmt.Errorf("failed to update pending order: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = $1", order.ID); err != nil {
		return nil, fmt.Errorf("failed to clear order items: %w", err)
	}
	for _, item := range order.Items {
		saved, err := insertOrderItem(ctx, tx, updated.ID, item)
		if err != nil {
			return nil, err
		}
		updated.Items = append(updated.Items, saved)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit pending order: %w", err)
	}
	return updated, nil
}

// UpdateStatus updates an order's status
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1", orderID, status)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("order %s: %w", orderID, models.ErrOrderNotFound)
	}
	return nil
}

// Complete marks an order completed and writes its students and bookings in
// one transaction. A second call for the same order returns the bookings
// written by the first with AlreadyCompleted set.
func (r *OrderRepository) Complete(ctx context.Context, orderID string, drafts []BookingDraft) (*CompletedOrder, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := scanOrder(tx.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", orderID, models.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	switch order.Status {
	case models.OrderCompleted:
		bookings, err := listBookingsByOrder(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		return &CompletedOrder{Order: order, Bookings: bookings, AlreadyCompleted: true}, nil
	case models.OrderRefunded:
		return nil, fmt.Errorf("order %s is %s: %w", order.OrderNumber, order.Status, models.ErrOrderClosed)
	}

	result := &CompletedOrder{Order: order}
	for _, d := range drafts {
		if d.Capacity > 0 {
			taken, err := countActiveInSlot(ctx, tx, d.Booking.ProductID, d.Booking.LocationID,
				d.Booking.StartDateTime, d.Booking.EndDateTime)
			if err != nil {
				return nil, err
			}
			if taken >= d.Capacity {
				return nil, fmt.Errorf("%s at %s: %w", d.Booking.ProductID,
					d.Booking.StartDateTime.Format("2006-01-02 15:04"), models.ErrCapacityExceeded)
			}
		}

		student, err := upsertStudent(ctx, tx, &d.Student)
		if err != nil {
			return nil, err
		}

		b := d.Booking
		b.StudentID = student.ID
		b.OrderID = &order.ID
		created, err := insertBooking(ctx, tx, &b)
		if err != nil {
			return nil, err
		}
		created.Student = student
		result.Bookings = append(result.Bookings, created)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1", orderID, models.OrderCompleted); err != nil {
		return nil, fmt.Errorf("failed to complete order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order completion: %w", err)
	}

	order.Status = models.OrderCompleted
	return result, nil
}
