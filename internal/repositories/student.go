package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"activity-storefront/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// StudentRepository handles participant data operations
type StudentRepository struct {
	db *sql.DB
}

// NewStudentRepository creates a new student repository
func NewStudentRepository(db *sql.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `
	id, first_name, last_name, age, date_of_birth, allergies, medical_notes,
	emergency_contact_name, emergency_contact_phone, emergency_contact_relationship,
	parent_name, parent_email, parent_phone`

func scanStudent(row rowScanner) (*models.StudentDetails, error) {
	s := &models.StudentDetails{}
	var (
		age sql.NullInt64
		dob sql.NullTime
	)
	err := row.Scan(
		&s.ID,
		&s.FirstName,
		&s.LastName,
		&age,
		&dob,
		pq.Array(&s.Allergies),
		&s.MedicalNotes,
		&s.EmergencyContact.Name,
		&s.EmergencyContact.Phone,
		&s.EmergencyContact.Relationship,
		&s.ParentName,
		&s.ParentEmail,
		&s.ParentPhone,
	)
	if err != nil {
		return nil, err
	}
	if age.Valid {
		s.Age = int(age.Int64)
	}
	if dob.Valid {
		s.DateOfBirth = &dob.Time
	}
	return s, nil
}

// upsertStudent writes s keyed by its ID. Cart-generated ids that are not
// UUIDs are replaced with a fresh one.
func upsertStudent(ctx context.Context, q querier, s *models.StudentDetails) (*models.StudentDetails, error) {
	id := s.ID
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	age := sql.NullInt64{Int64: int64(s.Age), Valid: s.Age > 0}

	query := `
		INSERT INTO students (id, first_name, last_name, age, date_of_birth, allergies, medical_notes,
			emergency_contact_name, emergency_contact_phone, emergency_contact_relationship,
			parent_name, parent_email, parent_phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			age = EXCLUDED.age,
			date_of_birth = EXCLUDED.date_of_birth,
			allergies = EXCLUDED.allergies,
			medical_notes = EXCLUDED.medical_notes,
			emergency_contact_name = EXCLUDED.emergency_contact_name,
			emergency_contact_phone = EXCLUDED.emergency_contact_phone,
			emergency_contact_relationship = EXCLUDED.emergency_contact_relationship,
			parent_name = EXCLUDED.parent_name,
			parent_email = EXCLUDED.parent_email,
			parent_phone = EXCLUDED.parent_phone
		RETURNING ` + studentColumns

	saved, err := scanStudent(q.QueryRowContext(ctx, query,
		id,
		strings.TrimSpace(s.FirstName),
		strings.TrimSpace(s.LastName),
		age,
		nullTime(s.DateOfBirth),
		pq.Array(s.Allergies),
		s.MedicalNotes,
		s.EmergencyContact.Name,
		s.EmergencyContact.Phone,
		s.EmergencyContact.Relationship,
		s.ParentName,
		strings.ToLower(strings.TrimSpace(s.ParentEmail)),
		s.ParentPhone,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to save student: %w", err)
	}
	return saved, nil
}

// Save creates or updates a student
func (r *StudentRepository) Save(ctx context.Context, s *models.StudentDetails) (*models.StudentDetails, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return upsertStudent(ctx, r.db, s)
}

// GetByID retrieves a student by ID
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*models.StudentDetails, error) {
	s, err := scanStudent(r.db.QueryRowContext(ctx,
		"SELECT "+studentColumns+" FROM students WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("student %s: %w", id, models.ErrStudentNotFound)
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return s, nil
}

// GetByIDs returns the students keyed by id; unknown ids are skipped
func (r *StudentRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.StudentDetails, error) {
	out := make(map[string]*models.StudentDetails, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+studentColumns+" FROM students WHERE id = ANY($1::uuid[])", pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get students: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}
