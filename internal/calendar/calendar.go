// Package calendar turns persisted bookings into calendar-widget events and
// defines the typed updates the admin calendar sends back.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"activity-storefront/internal/models"
)

// Colors per product type. Full slots get the full border.
var typeColors = map[models.ProductType]string{
	models.ProductCamp:         "#3B82F6",
	models.ProductBirthday:     "#EC4899",
	models.ProductSubscription: "#10B981",
}

const (
	defaultColor    = "#6B7280"
	fullBorderColor = "#EF4444"
	textColor       = "#FFFFFF"
)

// Event is one calendar-widget record: a product session at a location with
// every booking for that slot collapsed into it.
type Event struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Start           time.Time     `json:"start"`
	End             time.Time     `json:"end"`
	BackgroundColor string        `json:"backgroundColor"`
	BorderColor     string        `json:"borderColor"`
	TextColor       string        `json:"textColor"`
	ExtendedProps   ExtendedProps `json:"extendedProps"`
}

// ExtendedProps is the free-form bag the widget passes back on clicks.
type ExtendedProps struct {
	ProductID       string                       `json:"productId"`
	ProductType     models.ProductType           `json:"productType"`
	LocationID      string                       `json:"locationId"`
	LocationName    string                       `json:"locationName,omitempty"`
	Capacity        int                          `json:"capacity"`
	CurrentBookings int                          `json:"currentBookings"`
	AvailableSpots  int                          `json:"availableSpots"`
	BookingIDs      []string                     `json:"bookingIds"`
	StatusCounts    map[models.BookingStatus]int `json:"statusCounts"`
	Students        []Attendee                   `json:"students"`
}

// Attendee is one booked participant of an event.
type Attendee struct {
	BookingID     string               `json:"bookingId"`
	StudentID     string               `json:"studentId"`
	Name          string               `json:"name,omitempty"`
	Status        models.BookingStatus `json:"status"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	Allergies     []string             `json:"allergies,omitempty"`
}

// Callbacks is the contract the admin page wires to persistence. Event ids
// passed to the callbacks are booking ids taken from ExtendedProps.BookingIDs.
type Callbacks struct {
	OnEventUpdate func(ctx context.Context, bookingID string, update EventUpdate) (*models.Booking, error)
	OnEventDelete func(ctx context.Context, bookingID string) error
}

type groupKey struct {
	productID  string
	locationID string
	start      int64
	end        int64
}

// EventID is the stable id of the group a booking falls into.
func EventID(b *models.Booking) string {
	return fmt.Sprintf("%s_%s_%d_%d", b.ProductID, b.LocationID, b.StartDateTime.Unix(), b.EndDateTime.Unix())
}

// GroupBookings collapses bookings that share product, location, start and
// end into one event. Cancelled bookings free their place and are left out.
// Events are ordered by start time, then title.
func GroupBookings(bookings []models.Booking, products map[string]models.Product, locations map[string]models.Location) []Event {
	groups := make(map[groupKey]*Event)
	var order []groupKey

	for i := range bookings {
		b := &bookings[i]
		if b.Status == models.BookingCancelled {
			continue
		}

		k := groupKey{b.ProductID, b.LocationID, b.StartDateTime.Unix(), b.EndDateTime.Unix()}
		ev, ok := groups[k]
		if !ok {
			ev = newEvent(b, products, locations)
			groups[k] = ev
			order = append(order, k)
		}

		props := &ev.ExtendedProps
		props.CurrentBookings++
		props.BookingIDs = append(props.BookingIDs, b.ID)
		props.StatusCounts[b.Status]++
		attendee := Attendee{
			BookingID:     b.ID,
			StudentID:     b.StudentID,
			Status:        b.Status,
			PaymentStatus: b.PaymentStatus,
		}
		if b.Student != nil {
			attendee.Name = b.Student.FullName()
			attendee.Allergies = b.Student.Allergies
		}
		props.Students = append(props.Students, attendee)
	}

	events := make([]Event, 0, len(order))
	for _, k := range order {
		ev := groups[k]
		props := &ev.ExtendedProps
		props.AvailableSpots = props.Capacity - props.CurrentBookings
		if props.AvailableSpots < 0 {
			props.AvailableSpots = 0
		}
		if props.Capacity > 0 && props.AvailableSpots == 0 {
			ev.BorderColor = fullBorderColor
		}
		ev.Title = fmt.Sprintf("%s (%d/%d)", ev.Title, props.CurrentBookings, props.Capacity)
		events = append(events, *ev)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].Title < events[j].Title
	})
	return events
}

func newEvent(b *models.Booking, products map[string]models.Product, locations map[string]models.Location) *Event {
	ev := &Event{
		ID:        EventID(b),
		Title:     b.ProductID,
		Start:     b.StartDateTime,
		End:       b.EndDateTime,
		TextColor: textColor,
		ExtendedProps: ExtendedProps{
			ProductID:    b.ProductID,
			LocationID:   b.LocationID,
			BookingIDs:   []string{},
			StatusCounts: make(map[models.BookingStatus]int),
			Students:     []Attendee{},
		},
	}

	color := defaultColor
	if p, ok := products[b.ProductID]; ok {
		ev.Title = p.Name
		ev.ExtendedProps.ProductType = p.Type
		ev.ExtendedProps.Capacity = p.Capacity
		if c, ok := typeColors[p.Type]; ok {
			color = c
		}
	}
	if l, ok := locations[b.LocationID]; ok {
		ev.ExtendedProps.LocationName = l.Name
		// A venue smaller than the product caps the session.
		if l.Capacity > 0 && (ev.ExtendedProps.Capacity == 0 || l.Capacity < ev.ExtendedProps.Capacity) {
			ev.ExtendedProps.Capacity = l.Capacity
		}
	}
	ev.BackgroundColor = color
	ev.BorderColor = color
	return ev
}
