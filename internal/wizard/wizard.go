// Package wizard assembles a cart line item through a short, linear sequence
// of steps. Each booking flow is a finite-state machine driven by a
// transition table keyed by (step, event); guards read only the selections
// held locally. Nothing here performs I/O: the only side effect is the single
// hand-off to the cart in Complete.
package wizard

import (
	"errors"
	"fmt"
	"slices"

	"activity-storefront/internal/cart"
	"activity-storefront/internal/models"
)

var (
	ErrTransitionNotAllowed = errors.New("wizard transition not allowed")
	ErrWizardClosed         = errors.New("wizard is closed")
	ErrUnknownKind          = errors.New("unknown wizard kind")
	ErrUnknownPackage       = errors.New("package not offered by this wizard")
)

// Kind names a booking flow
type Kind string

const (
	KindCamp     Kind = "camp"
	KindBirthday Kind = "birthday"
	KindIgnite   Kind = "ignite"
)

// Step is a named wizard state
type Step string

const (
	StepLocation Step = "location"
	StepDates    Step = "dates"
	StepDate     Step = "date"
	StepSession  Step = "session"
	StepPackage  Step = "package"
	StepDetails  Step = "details"
	StepConfirm  Step = "confirm"
)

// Event drives a transition
type Event string

const (
	EventNext     Event = "next"
	EventBack     Event = "back"
	EventComplete Event = "complete"
)

// Selections is the state assembled by the steps.
type Selections struct {
	LocationID string                  `json:"location_id,omitempty"`
	Dates      []string                `json:"dates,omitempty"`
	TimeSlot   string                  `json:"time_slot,omitempty"`
	PackageID  string                  `json:"package_id,omitempty"`
	Quantity   int                     `json:"quantity,omitempty"`
	Students   []models.StudentDetails `json:"students,omitempty"`
	Notes      string                  `json:"notes,omitempty"`
}

// CartAdder is the part of the cart the wizard hands off to.
type CartAdder interface {
	AddItem(product models.Product, opts cart.AddItemOptions) models.EnhancedCartItem
	AddStudent(itemID string, student models.StudentDetails)
}

type guard func(w *Wizard) bool

type key struct {
	from  Step
	event Event
}

type rule struct {
	to    Step
	guard guard
}

type flow struct {
	steps       []Step
	transitions map[key]rule
}

// linear builds the table for a straight sequence of steps. guards[i] gates
// leaving steps[i] forward; the final guard gates Complete on the last step.
func linear(steps []Step, guards []guard) flow {
	t := make(map[key]rule)
	for i, s := range steps {
		if i+1 < len(steps) {
			t[key{s, EventNext}] = rule{to: steps[i+1], guard: guards[i]}
		} else {
			t[key{s, EventComplete}] = rule{to: s, guard: guards[i]}
		}
		if i > 0 {
			t[key{s, EventBack}] = rule{to: steps[i-1], guard: always}
		}
	}
	return flow{steps: steps, transitions: t}
}

var flows = map[Kind]flow{
	KindCamp: linear(
		[]Step{StepLocation, StepDates, StepSession, StepConfirm},
		[]guard{hasLocation, hasDates, hasSession, all(hasLocation, hasDates, hasSession)},
	),
	KindBirthday: linear(
		[]Step{StepLocation, StepDate, StepPackage, StepConfirm},
		[]guard{hasLocation, all(hasSingleDate, hasSession), hasPackage, all(hasLocation, hasSingleDate, hasSession, hasPackage)},
	),
	KindIgnite: linear(
		[]Step{StepLocation, StepSession, StepDetails, StepConfirm},
		[]guard{hasLocation, hasSession, hasValidDetails, all(hasLocation, hasSession, hasValidDetails)},
	),
}

func always(*Wizard) bool { return true }

func all(guards ...guard) guard {
	return func(w *Wizard) bool {
		for _, g := range guards {
			if !g(w) {
				return false
			}
		}
		return true
	}
}

func hasLocation(w *Wizard) bool { return w.sel.LocationID != "" }

func hasDates(w *Wizard) bool { return len(w.sel.Dates) > 0 }

func hasSingleDate(w *Wizard) bool { return len(w.sel.Dates) == 1 }

func hasSession(w *Wizard) bool { return models.IsValidTimeSlot(w.sel.TimeSlot) }

func hasPackage(w *Wizard) bool { return w.product() != nil }

func hasValidDetails(w *Wizard) bool {
	if len(w.sel.Students) == 0 {
		return false
	}
	for i := range w.sel.Students {
		if w.sel.Students[i].Validate() != nil {
			return false
		}
	}
	return true
}

// Wizard is one in-progress booking flow.
type Wizard struct {
	kind     Kind
	flow     flow
	step     Step
	closed   bool
	sel      Selections
	products []models.Product
}

// New starts a wizard of kind. Camp and ignite flows book products[0]; the
// birthday flow offers products as packages to choose from.
func New(kind Kind, products ...models.Product) (*Wizard, error) {
	f, ok := flows[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("%s wizard needs at least one product: %w", kind, models.ErrProductNotFound)
	}
	return &Wizard{
		kind:     kind,
		flow:     f,
		step:     f.steps[0],
		products: slices.Clone(products),
	}, nil
}

// Kind returns the flow this wizard runs.
func (w *Wizard) Kind() Kind { return w.kind }

// Step returns the current step.
func (w *Wizard) Step() Step { return w.step }

// Steps returns the ordered steps of the flow.
func (w *Wizard) Steps() []Step { return slices.Clone(w.flow.steps) }

// Closed reports whether the wizard has completed or been closed.
func (w *Wizard) Closed() bool { return w.closed }

// Selections returns a copy of what has been chosen so far.
func (w *Wizard) Selections() Selections {
	s := w.sel
	s.Dates = slices.Clone(w.sel.Dates)
	s.Students = slices.Clone(w.sel.Students)
	return s
}

// CanProceed evaluates the guard for leaving the current step. On the
// confirm step it reports whether Complete would succeed.
func (w *Wizard) CanProceed() bool {
	if w.closed {
		return false
	}
	event := EventNext
	if w.step == StepConfirm {
		event = EventComplete
	}
	r, ok := w.flow.transitions[key{w.step, event}]
	return ok && r.guard(w)
}

// Next moves one step forward.
func (w *Wizard) Next() (Step, error) {
	return w.fire(EventNext)
}

// Back moves one step backward. Selections are kept.
func (w *Wizard) Back() (Step, error) {
	return w.fire(EventBack)
}

func (w *Wizard) fire(event Event) (Step, error) {
	if w.closed {
		return w.step, ErrWizardClosed
	}
	r, ok := w.flow.transitions[key{w.step, event}]
	if !ok || !r.guard(w) {
		return w.step, fmt.Errorf("%w: %s from %s", ErrTransitionNotAllowed, event, w.step)
	}
	w.step = r.to
	return w.step, nil
}

// Complete hands the assembled item to the cart and closes the wizard. It is
// only allowed on the confirm step and runs at most once.
func (w *Wizard) Complete(store CartAdder) (models.EnhancedCartItem, error) {
	if _, err := w.fire(EventComplete); err != nil {
		return models.EnhancedCartItem{}, err
	}

	product := w.product()
	opts := cart.AddItemOptions{
		Quantity:   w.sel.Quantity,
		TimeSlot:   w.sel.TimeSlot,
		LocationID: w.sel.LocationID,
		Notes:      w.sel.Notes,
	}
	switch len(w.sel.Dates) {
	case 0:
	case 1:
		opts.Date = w.sel.Dates[0]
	default:
		opts.Dates = slices.Clone(w.sel.Dates)
	}

	item := store.AddItem(*product, opts)
	for _, s := range w.sel.Students {
		store.AddStudent(item.ID, s)
	}

	w.closed = true
	w.sel = Selections{}
	return item, nil
}

// Close abandons the wizard and discards every selection.
func (w *Wizard) Close() {
	w.closed = true
	w.sel = Selections{}
}

// product is the product being booked, or nil when no package is chosen.
func (w *Wizard) product() *models.Product {
	if w.kind != KindBirthday {
		return &w.products[0]
	}
	for i := range w.products {
		if w.products[i].ID == w.sel.PackageID {
			return &w.products[i]
		}
	}
	return nil
}

func (w *Wizard) set(fn func(s *Selections)) error {
	if w.closed {
		return ErrWizardClosed
	}
	fn(&w.sel)
	return nil
}

// SelectLocation records the venue.
func (w *Wizard) SelectLocation(locationID string) error {
	return w.set(func(s *Selections) { s.LocationID = locationID })
}

// SelectDates records the days attended (camps run over several days).
func (w *Wizard) SelectDates(dates ...string) error {
	return w.set(func(s *Selections) { s.Dates = slices.Clone(dates) })
}

// SelectDate records a single day.
func (w *Wizard) SelectDate(date string) error {
	return w.set(func(s *Selections) { s.Dates = []string{date} })
}

// SelectSession records the time slot.
func (w *Wizard) SelectSession(timeSlot string) error {
	return w.set(func(s *Selections) { s.TimeSlot = timeSlot })
}

// SelectPackage picks one of the offered birthday packages.
func (w *Wizard) SelectPackage(productID string) error {
	if w.closed {
		return ErrWizardClosed
	}
	if !slices.ContainsFunc(w.products, func(p models.Product) bool { return p.ID == productID }) {
		return fmt.Errorf("%w: %s", ErrUnknownPackage, productID)
	}
	w.sel.PackageID = productID
	return nil
}

// SetStudents records the participants handed to the cart on completion.
func (w *Wizard) SetStudents(students ...models.StudentDetails) error {
	return w.set(func(s *Selections) { s.Students = slices.Clone(students) })
}

// SetQuantity records how many places are booked.
func (w *Wizard) SetQuantity(quantity int) error {
	return w.set(func(s *Selections) { s.Quantity = quantity })
}

// SetNotes records free-text notes for the line item.
func (w *Wizard) SetNotes(notes string) error {
	return w.set(func(s *Selections) { s.Notes = notes })
}
