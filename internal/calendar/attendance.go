package calendar

import (
	"fmt"

	"activity-storefront/internal/models"
)

// AttendanceStatus is a participant's presence at a session
type AttendanceStatus string

const (
	AttendanceCheckedIn  AttendanceStatus = "CHECKED_IN"
	AttendanceCheckedOut AttendanceStatus = "CHECKED_OUT"
	AttendanceAbsent     AttendanceStatus = "ABSENT"
	AttendanceNotArrived AttendanceStatus = "NOT_ARRIVED"
)

// Valid reports whether s is a known attendance status.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceCheckedIn, AttendanceCheckedOut, AttendanceAbsent, AttendanceNotArrived:
		return true
	}
	return false
}

// AttendanceEntry is one row of the sheet.
type AttendanceEntry struct {
	BookingID string           `json:"bookingId"`
	Name      string           `json:"name,omitempty"`
	Status    AttendanceStatus `json:"status"`
}

// AttendanceSheet tracks who is present at an event. It lives only as long as
// the event detail view is open and is seeded fresh each time; nothing is
// persisted.
type AttendanceSheet struct {
	entries []AttendanceEntry
	index   map[string]int
}

// OpenAttendance seeds a sheet with every attendee NOT_ARRIVED.
func OpenAttendance(ev Event) *AttendanceSheet {
	sheet := &AttendanceSheet{
		entries: make([]AttendanceEntry, 0, len(ev.ExtendedProps.Students)),
		index:   make(map[string]int, len(ev.ExtendedProps.Students)),
	}
	for _, a := range ev.ExtendedProps.Students {
		if _, dup := sheet.index[a.BookingID]; dup {
			continue
		}
		sheet.index[a.BookingID] = len(sheet.entries)
		sheet.entries = append(sheet.entries, AttendanceEntry{
			BookingID: a.BookingID,
			Name:      a.Name,
			Status:    AttendanceNotArrived,
		})
	}
	return sheet
}

// Mark sets the status of one attendee.
func (s *AttendanceSheet) Mark(bookingID string, status AttendanceStatus) error {
	if !status.Valid() {
		return fmt.Errorf("attendance status %q: %w", status, models.ErrInvalidInput)
	}
	i, ok := s.index[bookingID]
	if !ok {
		return fmt.Errorf("booking %s is not on this sheet: %w", bookingID, models.ErrBookingNotFound)
	}
	s.entries[i].Status = status
	return nil
}

// MarkAll sets every attendee to status.
func (s *AttendanceSheet) MarkAll(status AttendanceStatus) error {
	if !status.Valid() {
		return fmt.Errorf("attendance status %q: %w", status, models.ErrInvalidInput)
	}
	for i := range s.entries {
		s.entries[i].Status = status
	}
	return nil
}

// Status returns the attendee's status.
func (s *AttendanceSheet) Status(bookingID string) (AttendanceStatus, bool) {
	i, ok := s.index[bookingID]
	if !ok {
		return "", false
	}
	return s.entries[i].Status, true
}

// Counts tallies attendees per status; every status is present.
func (s *AttendanceSheet) Counts() map[AttendanceStatus]int {
	counts := map[AttendanceStatus]int{
		AttendanceCheckedIn:  0,
		AttendanceCheckedOut: 0,
		AttendanceAbsent:     0,
		AttendanceNotArrived: 0,
	}
	for _, e := range s.entries {
		counts[e.Status]++
	}
	return counts
}

// Entries returns the rows in booking order.
func (s *AttendanceSheet) Entries() []AttendanceEntry {
	return append([]AttendanceEntry(nil), s.entries...)
}
