package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"activity-storefront/internal/models"
)

// StaffRepository handles admin account data operations
type StaffRepository struct {
	db *sql.DB
}

// NewStaffRepository creates a new staff repository
func NewStaffRepository(db *sql.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

const staffColumns = "id, email, name, password_hash, role, created_at"

func scanStaff(row rowScanner) (*models.Staff, error) {
	s := &models.Staff{}
	if err := row.Scan(&s.ID, &s.Email, &s.Name, &s.PasswordHash, &s.Role, &s.CreatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a staff account; PasswordHash must already be hashed
func (r *StaffRepository) Create(ctx context.Context, s *models.Staff) (*models.Staff, error) {
	if s.Role == "" {
		s.Role = models.StaffUser
	}

	created, err := scanStaff(r.db.QueryRowContext(ctx, `
		INSERT INTO staff_users (email, name, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+staffColumns,
		strings.ToLower(strings.TrimSpace(s.Email)), s.Name, s.PasswordHash, s.Role,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("staff %s: %w", s.Email, models.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("failed to create staff user: %w", err)
	}
	return created, nil
}

// GetByEmail retrieves a staff account by email
func (r *StaffRepository) GetByEmail(ctx context.Context, email string) (*models.Staff, error) {
	s, err := scanStaff(r.db.QueryRowContext(ctx,
		"SELECT "+staffColumns+" FROM staff_users WHERE email = $1",
		strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrStaffNotFound
		}
		return nil, fmt.Errorf("failed to get staff user: %w", err)
	}
	return s, nil
}

// GetByID retrieves a staff account by ID
func (r *StaffRepository) GetByID(ctx context.Context, id string) (*models.Staff, error) {
	s, err := scanStaff(r.db.QueryRowContext(ctx,
		"SELECT "+staffColumns+" FROM staff_users WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrStaffNotFound
		}
		return nil, fmt.Errorf("failed to get staff user: %w", err)
	}
	return s, nil
}

// UpdatePassword replaces a staff account's password hash
func (r *StaffRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE staff_users SET password_hash = $2 WHERE id = $1", id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update staff password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return models.ErrStaffNotFound
	}
	return nil
}
