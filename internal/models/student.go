package models

import (
	"strings"
	"time"
)

// EmergencyContact is who staff call when the guardian cannot be reached
type EmergencyContact struct {
	Name         string `json:"name" validate:"notblank,max=50,personname"`
	Phone        string `json:"phone" validate:"notblank,auphone"`
	Relationship string `json:"relationship" validate:"notblank"`
}

// StudentDetails is a participant attached to a cart line item or booking
type StudentDetails struct {
	ID               string           `json:"id" db:"id"`
	FirstName        string           `json:"first_name" db:"first_name" validate:"notblank,max=50,personname"`
	LastName         string           `json:"last_name" db:"last_name" validate:"notblank,max=50,personname"`
	Age              int              `json:"age,omitempty" db:"age"`
	DateOfBirth      *time.Time       `json:"date_of_birth,omitempty" db:"date_of_birth"`
	Allergies        []string         `json:"allergies,omitempty"`
	MedicalNotes     string           `json:"medical_notes,omitempty" db:"medical_notes" validate:"max=1000"`
	EmergencyContact EmergencyContact `json:"emergency_contact"`
	ParentName       string           `json:"parent_name" db:"parent_name" validate:"notblank,max=50,personname"`
	ParentEmail      string           `json:"parent_email" db:"parent_email" validate:"notblank,max=255,email"`
	ParentPhone      string           `json:"parent_phone" db:"parent_phone" validate:"notblank,auphone"`
}

// FullName returns "First Last".
func (s *StudentDetails) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// EffectiveAge returns Age when set, otherwise the age in whole years derived
// from DateOfBirth at now. Returns 0 when neither is known.
func (s *StudentDetails) EffectiveAge(now time.Time) int {
	if s.Age > 0 {
		return s.Age
	}
	if s.DateOfBirth == nil {
		return 0
	}
	dob := *s.DateOfBirth
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// HasAllergies reports whether any allergy is recorded.
func (s *StudentDetails) HasAllergies() bool {
	for _, a := range s.Allergies {
		if strings.TrimSpace(a) != "" {
			return true
		}
	}
	return false
}

// Validate validates the student data against the form schema
func (s *StudentDetails) Validate() error {
	return s.validateAt(time.Now())
}

func (s *StudentDetails) validateAt(now time.Time) error {
	errs := ValidateStruct(s)

	if s.Age == 0 && s.DateOfBirth == nil {
		errs.Add("age", "age or date of birth is required")
	} else if age := s.EffectiveAge(now); age < MinStudentAge || age > MaxStudentAge {
		errs.Add("age", "must be between %d and %d", MinStudentAge, MaxStudentAge)
	}
	if s.DateOfBirth != nil && s.DateOfBirth.After(now) {
		errs.Add("date_of_birth", "cannot be in the future")
	}

	return errs.ErrOrNil()
}
