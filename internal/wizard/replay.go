package wizard

import (
	"fmt"

	"activity-storefront/internal/models"
)

// Request is a complete set of wizard selections submitted in one call.
type Request struct {
	LocationID string                  `json:"location_id"`
	Dates      []string                `json:"dates,omitempty"`
	Date       string                  `json:"date,omitempty"`
	TimeSlot   string                  `json:"time_slot,omitempty"`
	PackageID  string                  `json:"package_id,omitempty"`
	Quantity   int                     `json:"quantity,omitempty"`
	Students   []models.StudentDetails `json:"students,omitempty"`
	Notes      string                  `json:"notes,omitempty"`
}

// StepError reports the step a replay stopped at.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("wizard stopped at %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Replay applies req and walks the wizard forward to the confirm step, the
// same sequence a customer clicks through. It stops at the first step whose
// guard fails.
func (w *Wizard) Replay(req Request) error {
	if w.closed {
		return ErrWizardClosed
	}

	w.sel.LocationID = req.LocationID
	switch {
	case len(req.Dates) > 0:
		w.sel.Dates = append([]string(nil), req.Dates...)
	case req.Date != "":
		w.sel.Dates = []string{req.Date}
	}
	w.sel.TimeSlot = req.TimeSlot
	w.sel.Quantity = req.Quantity
	w.sel.Students = append([]models.StudentDetails(nil), req.Students...)
	w.sel.Notes = req.Notes
	if w.kind == KindBirthday && req.PackageID != "" {
		if err := w.SelectPackage(req.PackageID); err != nil {
			return &StepError{Step: StepPackage, Err: err}
		}
	}

	for w.step != StepConfirm {
		if _, err := w.Next(); err != nil {
			return &StepError{Step: w.step, Err: err}
		}
	}
	if !w.CanProceed() {
		return &StepError{Step: w.step, Err: ErrTransitionNotAllowed}
	}
	return nil
}
