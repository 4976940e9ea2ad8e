package cart

import (
	"fmt"
	"strings"
	"time"

	"activity-storefront/internal/models"
	"activity-storefront/internal/pricing"
)

// validate enumerates rule violations over items without touching them.
func validate(items []models.EnhancedCartItem, now time.Time) models.CartValidation {
	v := models.CartValidation{
		Errors:   []models.CartError{},
		Warnings: []models.CartWarning{},
	}

	for i := range items {
		item := &items[i]
		product := &item.Product
		errorf := func(field, format string, args ...interface{}) {
			v.Errors = append(v.Errors, models.CartError{
				ItemID:  item.ID,
				Field:   field,
				Message: fmt.Sprintf(format, args...),
			})
		}
		warnf := func(format string, args ...interface{}) {
			v.Warnings = append(v.Warnings, models.CartWarning{
				ItemID:  item.ID,
				Message: fmt.Sprintf(format, args...),
			})
		}

		if product.Type.RequiresStudents() {
			if !item.HasSchedule() {
				errorf("schedule", "Please select a date for %s", product.Name)
			}
			if len(item.Students) < item.Quantity {
				errorf("students", "%s needs %d student(s), %d added", product.Name, item.Quantity, len(item.Students))
			}
		}
		if product.Type == models.ProductSubscription && item.SelectedTimeSlot == "" {
			warnf("No session time selected for %s", product.Name)
		}

		if product.Capacity > 0 && (item.Quantity > product.Capacity || len(item.Students) > product.Capacity) {
			warnf("%s has a capacity of %d; availability is confirmed at checkout", product.Name, product.Capacity)
		}
		if !product.Active {
			warnf("%s is no longer available", product.Name)
		}
		if item.IsEarlyBird && !pricing.IsEarlyBirdEligible(product, now) {
			warnf("The early-bird offer for %s has ended", product.Name)
		}

		for idx := range item.Students {
			student := &item.Students[idx]
			validateStudent(student, product, now, func(field, msg string) {
				errorf(fmt.Sprintf("students[%d].%s", idx, field), "%s", msg)
			})
			if student.HasAllergies() {
				warnf("%s has allergies: %s", studentLabel(student, idx), strings.Join(student.Allergies, ", "))
			}
		}
	}

	v.IsValid = len(v.Errors) == 0
	return v
}

func validateStudent(s *models.StudentDetails, product *models.Product, now time.Time, report func(field, msg string)) {
	label := studentLabel(s, -1)

	if strings.TrimSpace(s.FirstName) == "" {
		report("first_name", "First name is required")
	}
	if strings.TrimSpace(s.LastName) == "" {
		report("last_name", "Last name is required")
	}

	age := s.EffectiveAge(now)
	switch {
	case age == 0:
		report("age", fmt.Sprintf("Age is required for %s", label))
	case !product.AgeRange.Contains(age):
		report("age", fmt.Sprintf("%s is %d; %s is for ages %d-%d",
			label, age, product.Name, product.AgeRange.Min, product.AgeRange.Max))
	}

	if strings.TrimSpace(s.ParentName) == "" {
		report("parent_name", "Parent/guardian name is required")
	}
	switch {
	case strings.TrimSpace(s.ParentEmail) == "":
		report("parent_email", "Parent/guardian email is required")
	case !models.IsValidEmail(s.ParentEmail):
		report("parent_email", "Parent/guardian email is invalid")
	}
	switch {
	case strings.TrimSpace(s.ParentPhone) == "":
		report("parent_phone", "Parent/guardian phone is required")
	case !models.IsValidPhone(s.ParentPhone):
		report("parent_phone", "Parent/guardian phone must be an Australian number")
	}

	if strings.TrimSpace(s.EmergencyContact.Name) == "" {
		report("emergency_contact.name", "Emergency contact name is required")
	}
	switch {
	case strings.TrimSpace(s.EmergencyContact.Phone) == "":
		report("emergency_contact.phone", "Emergency contact phone is required")
	case !models.IsValidPhone(s.EmergencyContact.Phone):
		report("emergency_contact.phone", "Emergency contact phone must be an Australian number")
	}
}

func studentLabel(s *models.StudentDetails, idx int) string {
	if name := s.FullName(); name != "" {
		return name
	}
	if idx >= 0 {
		return fmt.Sprintf("Student %d", idx+1)
	}
	return "Student"
}
