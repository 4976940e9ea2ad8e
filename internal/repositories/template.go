package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"activity-storefront/internal/models"
)

// TemplateRepository handles recurring subscription schedules
type TemplateRepository struct {
	db *sql.DB
}

// NewTemplateRepository creates a new recurring template repository
func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `
	id, product_id, location_id, day_of_week, start_time, end_time, start_date, end_date, capacity`

func scanTemplate(row rowScanner) (*models.RecurringTemplate, error) {
	t := &models.RecurringTemplate{}
	var day int
	err := row.Scan(
		&t.ID,
		&t.ProductID,
		&t.LocationID,
		&day,
		&t.StartTime,
		&t.EndTime,
		&t.StartDate,
		&t.EndDate,
		&t.Capacity,
	)
	if err != nil {
		return nil, err
	}
	t.DayOfWeek = time.Weekday(day)
	return t, nil
}

// ListByProduct returns a product's schedules ordered by weekday and start time
func (r *TemplateRepository) ListByProduct(ctx context.Context, productID string) ([]*models.RecurringTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+templateColumns+`
		FROM recurring_templates
		WHERE product_id = $1
		ORDER BY day_of_week, start_time`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.RecurringTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// Create inserts a recurring template
func (r *TemplateRepository) Create(ctx context.Context, t *models.RecurringTemplate) (*models.RecurringTemplate, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	created, err := scanTemplate(r.db.QueryRowContext(ctx, `
		INSERT INTO recurring_templates (product_id, location_id, day_of_week, start_time, end_time,
			start_date, end_date, capacity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+templateColumns,
		t.ProductID,
		t.LocationID,
		int(t.DayOfWeek),
		t.StartTime,
		t.EndTime,
		t.StartDate,
		t.EndDate,
		t.Capacity,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create recurring template: %w", err)
	}
	return created, nil
}
