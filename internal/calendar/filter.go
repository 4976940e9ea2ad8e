package calendar

import (
	"net/url"
	"time"

	"activity-storefront/internal/models"
)

// View is a calendar widget view name
type View string

const (
	ViewMonth    View = "dayGridMonth"
	ViewWeek     View = "timeGridWeek"
	ViewDay      View = "timeGridDay"
	ViewListWeek View = "listWeek"
)

// Valid reports whether v is a known view.
func (v View) Valid() bool {
	switch v {
	case ViewMonth, ViewWeek, ViewDay, ViewListWeek:
		return true
	}
	return false
}

// Filter selects the bookings shown on the calendar. Start is inclusive and
// End exclusive.
type Filter struct {
	Start       time.Time
	End         time.Time
	View        View
	ProductType models.ProductType
	LocationID  string
}

// ParseFilter reads start, end, view, productType and locationId from a
// query string. start/end accept RFC 3339 or YYYY-MM-DD; when absent the
// range covering now for the selected view is used.
func ParseFilter(q url.Values, now time.Time) (Filter, error) {
	var errs models.ValidationErrors
	f := Filter{
		View:        View(q.Get("view")),
		ProductType: models.ProductType(q.Get("productType")),
		LocationID:  q.Get("locationId"),
	}
	if f.View == "" {
		f.View = ViewMonth
	}

	parse := func(field string) time.Time {
		raw := q.Get(field)
		if raw == "" {
			return time.Time{}
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
		errs.Add(field, "must be RFC 3339 or YYYY-MM-DD")
		return time.Time{}
	}
	f.Start = parse("start")
	f.End = parse("end")
	if len(errs) > 0 {
		return Filter{}, errs
	}

	if f.Start.IsZero() || f.End.IsZero() {
		start, end := DefaultRange(f.View, now)
		if f.Start.IsZero() {
			f.Start = start
		}
		if f.End.IsZero() {
			f.End = end
		}
	}

	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// Validate validates the filter
func (f Filter) Validate() error {
	var errs models.ValidationErrors
	if !f.View.Valid() {
		errs.Add("view", "is invalid")
	}
	if f.ProductType != "" && !f.ProductType.Valid() {
		errs.Add("productType", "is invalid")
	}
	if !f.End.After(f.Start) {
		errs.Add("end", "must be after start")
	} else if f.End.Sub(f.Start) > 62*24*time.Hour {
		errs.Add("end", "range cannot exceed 62 days")
	}
	return errs.ErrOrNil()
}

// DefaultRange is the visible range of view around now.
func DefaultRange(view View, now time.Time) (time.Time, time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch view {
	case ViewDay:
		return day, day.AddDate(0, 0, 1)
	case ViewWeek, ViewListWeek:
		offset := (int(day.Weekday()) + 6) % 7 // weeks start Monday
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	default:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0)
	}
}

// Matches reports whether a booking for product falls inside the filter.
// A booking overlapping the range matches.
func (f Filter) Matches(b *models.Booking, product *models.Product) bool {
	if !b.StartDateTime.Before(f.End) || !b.EndDateTime.After(f.Start) {
		return false
	}
	if f.LocationID != "" && b.LocationID != f.LocationID {
		return false
	}
	if f.ProductType != "" && (product == nil || product.Type != f.ProductType) {
		return false
	}
	return true
}
