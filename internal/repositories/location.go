package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"activity-storefront/internal/models"
)

// LocationRepository handles venue data operations
type LocationRepository struct {
	db *sql.DB
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *sql.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

const locationColumns = `
	id, name, address, suburb, state, postcode, phone, email, latitude, longitude,
	capacity, active, created_at, updated_at`

func scanLocation(row rowScanner) (*models.Location, error) {
	l := &models.Location{}
	err := row.Scan(
		&l.ID,
		&l.Name,
		&l.Address,
		&l.Suburb,
		&l.State,
		&l.Postcode,
		&l.Phone,
		&l.Email,
		&l.Latitude,
		&l.Longitude,
		&l.Capacity,
		&l.Active,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// List returns locations ordered by name
func (r *LocationRepository) List(ctx context.Context, activeOnly bool) ([]*models.Location, error) {
	query := "SELECT " + locationColumns + " FROM locations"
	if activeOnly {
		query += " WHERE active = TRUE"
	}
	query += " ORDER BY name"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []*models.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// GetByID retrieves a location by ID
func (r *LocationRepository) GetByID(ctx context.Context, id string) (*models.Location, error) {
	l, err := scanLocation(r.db.QueryRowContext(ctx,
		"SELECT "+locationColumns+" FROM locations WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("location %s: %w", id, models.ErrLocationNotFound)
		}
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return l, nil
}

// Create inserts a new location
func (r *LocationRepository) Create(ctx context.Context, l *models.Location) (*models.Location, error) {
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO locations (name, address, suburb, state, postcode, phone, email,
			latitude, longitude, capacity, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + locationColumns

	created, err := scanLocation(r.db.QueryRowContext(ctx, query,
		l.Name,
		l.Address,
		l.Suburb,
		strings.ToUpper(l.State),
		l.Postcode,
		l.Phone,
		l.Email,
		l.Latitude,
		l.Longitude,
		l.Capacity,
		l.Active,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}
	return created, nil
}

// FindByName returns the location with the given name, used by the catalog seeder
func (r *LocationRepository) FindByName(ctx context.Context, name string) (*models.Location, error) {
	l, err := scanLocation(r.db.QueryRowContext(ctx,
		"SELECT "+locationColumns+" FROM locations WHERE name = $1 LIMIT 1", name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("location %q: %w", name, models.ErrLocationNotFound)
		}
		return nil, fmt.Errorf("failed to find location: %w", err)
	}
	return l, nil
}
