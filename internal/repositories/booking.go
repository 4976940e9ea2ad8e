package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"activity-storefront/internal/models"

	"github.com/lib/pq"
)

// BookingRepository handles booking data operations
type BookingRepository struct {
	db *sql.DB
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// BookingFilter selects bookings overlapping [Start, End)
type BookingFilter struct {
	Start            time.Time
	End              time.Time
	ProductType      models.ProductType
	LocationID       string
	IncludeCancelled bool
}

const bookingColumns = `
	b.id, b.student_id, b.product_id, b.location_id, b.order_id, b.start_date_time,
	b.end_date_time, b.status, b.payment_status, b.total_amount, b.amount_paid, b.notes,
	b.created_at, b.updated_at`

func scanBooking(row rowScanner) (*models.Booking, error) {
	b := &models.Booking{}
	var orderID sql.NullString
	err := row.Scan(
		&b.ID,
		&b.StudentID,
		&b.ProductID,
		&b.LocationID,
		&orderID,
		&b.StartDateTime,
		&b.EndDateTime,
		&b.Status,
		&b.PaymentStatus,
		&b.TotalAmount,
		&b.AmountPaid,
		&b.Notes,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if orderID.Valid {
		b.OrderID = &orderID.String
	}
	return b, nil
}

// FindByRange returns bookings overlapping the filter window with their students
func (r *BookingRepository) FindByRange(ctx context.Context, filter BookingFilter) ([]*models.Booking, error) {
	args := []interface{}{filter.Start, filter.End}
	conditions := []string{"b.start_date_time < $2", "b.end_date_time > $1"}

	if !filter.IncludeCancelled {
		conditions = append(conditions, "b.status <> 'CANCELLED'")
	}
	if filter.ProductType != "" {
		args = append(args, filter.ProductType)
		conditions = append(conditions, fmt.Sprintf("p.type = $%d", len(args)))
	}
	if filter.LocationID != "" {
		args = append(args, filter.LocationID)
		conditions = append(conditions, fmt.Sprintf("b.location_id = $%d", len(args)))
	}

	query := "SELECT " + bookingColumns + `,
			s.first_name, s.last_name, s.age, s.allergies, s.parent_name, s.parent_email, s.parent_phone
		FROM bookings b
		JOIN products p ON p.id = b.product_id
		LEFT JOIN students s ON s.id = b.student_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY b.start_date_time, b.created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		var (
			b         models.Booking
			orderID   sql.NullString
			firstName sql.NullString
			lastName  sql.NullString
			age       sql.NullInt64
			allergies pq.StringArray
			parent    sql.NullString
			email     sql.NullString
			phone     sql.NullString
		)
		err := rows.Scan(
			&b.ID, &b.StudentID, &b.ProductID, &b.LocationID, &orderID, &b.StartDateTime,
			&b.EndDateTime, &b.Status, &b.PaymentStatus, &b.TotalAmount, &b.AmountPaid, &b.Notes,
			&b.CreatedAt, &b.UpdatedAt,
			&firstName, &lastName, &age, &allergies, &parent, &email, &phone,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		if orderID.Valid {
			b.OrderID = &orderID.String
		}
		if firstName.Valid {
			b.Student = &models.StudentDetails{
				ID:          b.StudentID,
				FirstName:   firstName.String,
				LastName:    lastName.String,
				Age:         int(age.Int64),
				Allergies:   allergies,
				ParentName:  parent.String,
				ParentEmail: email.String,
				ParentPhone: phone.String,
			}
		}
		bookings = append(bookings, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings b WHERE b.id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", id, models.ErrBookingNotFound)
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// ListByOrder returns the bookings created for an order
func (r *BookingRepository) ListByOrder(ctx context.Context, orderID string) ([]*models.Booking, error) {
	return listBookingsByOrder(ctx, r.db, orderID)
}

func listBookingsByOrder(ctx context.Context, q querier, orderID string) ([]*models.Booking, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings b WHERE b.order_id = $1 ORDER BY b.start_date_time", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// CountActiveInSlot counts PENDING and CONFIRMED bookings in an exact slot
func (r *BookingRepository) CountActiveInSlot(ctx context.Context, productID, locationID string, start, end time.Time) (int, error) {
	return countActiveInSlot(ctx, r.db, productID, locationID, start, end)
}

func countActiveInSlot(ctx context.Context, q querier, productID, locationID string, start, end time.Time) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE product_id = $1 AND location_id = $2
			AND start_date_time = $3 AND end_date_time = $4
			AND status IN ('PENDING', 'CONFIRMED')`,
		productID, locationID, start, end,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count slot bookings: %w", err)
	}
	return count, nil
}

// Create inserts a booking
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return insertBooking(ctx, r.db, b)
}

func insertBooking(ctx context.Context, q querier, b *models.Booking) (*models.Booking, error) {
	var orderID sql.NullString
	if b.OrderID != nil {
		orderID = nullString(*b.OrderID)
	}

	query := `
		INSERT INTO bookings AS b (student_id, product_id, location_id, order_id, start_date_time,
			end_date_time, status, payment_status, total_amount, amount_paid, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + bookingColumns

	created, err := scanBooking(q.QueryRowContext(ctx, query,
		b.StudentID,
		b.ProductID,
		b.LocationID,
		orderID,
		b.StartDateTime,
		b.EndDateTime,
		b.Status,
		b.PaymentStatus,
		b.TotalAmount,
		b.AmountPaid,
		b.Notes,
	))
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("failed to create booking: %w: %v", models.ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	return created, nil
}

// Update persists the mutable fields of a booking
func (r *BookingRepository) Update(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE bookings AS b
		SET start_date_time = $2, end_date_time = $3, status = $4, payment_status = $5,
			amount_paid = $6, notes = $7, updated_at = NOW()
		WHERE b.id = $1
		RETURNING ` + bookingColumns

	updated, err := scanBooking(r.db.QueryRowContext(ctx, query,
		b.ID,
		b.StartDateTime,
		b.EndDateTime,
		b.Status,
		b.PaymentStatus,
		b.AmountPaid,
		b.Notes,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", b.ID, models.ErrBookingNotFound)
		}
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}
	return updated, nil
}

// SetOrderPaymentStatus updates payment status on every booking of an order
func (r *BookingRepository) SetOrderPaymentStatus(ctx context.Context, orderID string, status models.PaymentStatus) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE bookings SET payment_status = $2, updated_at = NOW() WHERE order_id = $1",
		orderID, status)
	if err != nil {
		return 0, fmt.Errorf("failed to update order bookings: %w", err)
	}
	return result.RowsAffected()
}
