package wizard

import (
	"errors"
	"testing"

	"activity-storefront/internal/cart"
	"activity-storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id string, typ models.ProductType) models.Product {
	return models.Product{
		ID:       id,
		Name:     "Product " + id,
		Type:     typ,
		Pricing:  models.Pricing{BasePrice: decimal.NewFromInt(50)},
		Capacity: 10,
		AgeRange: models.AgeRange{Min: 5, Max: 12},
		Active:   true,
	}
}

func guardian() models.StudentDetails {
	return models.StudentDetails{
		FirstName: "Leo",
		LastName:  "Smith",
		Age:       9,
		EmergencyContact: models.EmergencyContact{
			Name:         "Kim Smith",
			Phone:        "0400 111 222",
			Relationship: "Aunt",
		},
		ParentName:  "Sam Smith",
		ParentEmail: "sam@example.com",
		ParentPhone: "0400 333 444",
	}
}

// recordingCart counts hand-offs.
type recordingCart struct {
	added    []models.Product
	opts     []cart.AddItemOptions
	students []models.StudentDetails
}

func (r *recordingCart) AddItem(p models.Product, opts cart.AddItemOptions) models.EnhancedCartItem {
	r.added = append(r.added, p)
	r.opts = append(r.opts, opts)
	return models.EnhancedCartItem{ID: "item-1", Product: p, Quantity: 1}
}

func (r *recordingCart) AddStudent(_ string, s models.StudentDetails) {
	r.students = append(r.students, s)
}

func TestNew(t *testing.T) {
	_, err := New("unknown", product("p", models.ProductCamp))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = New(KindCamp)
	assert.ErrorIs(t, err, models.ErrProductNotFound)

	w, err := New(KindCamp, product("p", models.ProductCamp))
	require.NoError(t, err)
	assert.Equal(t, StepLocation, w.Step())
	assert.Equal(t, []Step{StepLocation, StepDates, StepSession, StepConfirm}, w.Steps())
}

func TestCampWizard_Flow(t *testing.T) {
	w, err := New(KindCamp, product("camp", models.ProductCamp))
	require.NoError(t, err)

	assert.False(t, w.CanProceed())
	_, err = w.Next()
	assert.ErrorIs(t, err, ErrTransitionNotAllowed)
	assert.Equal(t, StepLocation, w.Step())

	_, err = w.Back()
	assert.ErrorIs(t, err, ErrTransitionNotAllowed, "no step before the first")

	require.NoError(t, w.SelectLocation("loc-1"))
	assert.True(t, w.CanProceed())
	step, err := w.Next()
	require.NoError(t, err)
	assert.Equal(t, StepDates, step)

	_, err = w.Next()
	assert.ErrorIs(t, err, ErrTransitionNotAllowed)
	require.NoError(t, w.SelectDates("2026-12-14", "2026-12-15"))
	step, _ = w.Next()
	assert.Equal(t, StepSession, step)

	require.NoError(t, w.SelectSession("25:00"))
	assert.False(t, w.CanProceed(), "malformed slot")
	require.NoError(t, w.SelectSession("09:00-15:00"))
	step, _ = w.Next()
	assert.Equal(t, StepConfirm, step)

	step, err = w.Back()
	require.NoError(t, err)
	assert.Equal(t, StepSession, step)
	assert.Equal(t, "09:00-15:00", w.Selections().TimeSlot, "back keeps selections")
	_, _ = w.Next()

	_, err = w.Next()
	assert.ErrorIs(t, err, ErrTransitionNotAllowed, "confirm has no next step")

	rc := &recordingCart{}
	item, err := w.Complete(rc)
	require.NoError(t, err)
	assert.Equal(t, "item-1", item.ID)
	require.Len(t, rc.added, 1)
	assert.Equal(t, []string{"2026-12-14", "2026-12-15"}, rc.opts[0].Dates)
	assert.Equal(t, "09:00-15:00", rc.opts[0].TimeSlot)
	assert.Equal(t, "loc-1", rc.opts[0].LocationID)

	_, err = w.Complete(rc)
	assert.ErrorIs(t, err, ErrWizardClosed)
	assert.Len(t, rc.added, 1, "exactly one hand-off")
	assert.True(t, w.Closed())
}

func TestCompleteOnlyOnConfirm(t *testing.T) {
	w, _ := New(KindCamp, product("camp", models.ProductCamp))
	require.NoError(t, w.SelectLocation("loc-1"))

	rc := &recordingCart{}
	_, err := w.Complete(rc)
	assert.ErrorIs(t, err, ErrTransitionNotAllowed)
	assert.Empty(t, rc.added)
}

func TestBirthdayWizard_Packages(t *testing.T) {
	basic := product("party-basic", models.ProductBirthday)
	deluxe := product("party-deluxe", models.ProductBirthday)
	w, err := New(KindBirthday, basic, deluxe)
	require.NoError(t, err)

	require.NoError(t, w.SelectLocation("loc-1"))
	_, err = w.Next()
	require.NoError(t, err)

	require.NoError(t, w.SelectDate("2026-11-21"))
	assert.False(t, w.CanProceed(), "time slot required with the date")
	require.NoError(t, w.SelectSession("10:00-12:00"))
	step, err := w.Next()
	require.NoError(t, err)
	assert.Equal(t, StepPackage, step)

	assert.ErrorIs(t, w.SelectPackage("party-gold"), ErrUnknownPackage)
	assert.False(t, w.CanProceed())
	require.NoError(t, w.SelectPackage("party-deluxe"))
	_, err = w.Next()
	require.NoError(t, err)

	rc := &recordingCart{}
	_, err = w.Complete(rc)
	require.NoError(t, err)
	require.Len(t, rc.added, 1)
	assert.Equal(t, "party-deluxe", rc.added[0].ID)
	assert.Equal(t, "2026-11-21", rc.opts[0].Date)
	assert.Empty(t, rc.opts[0].Dates)
}

func TestIgniteWizard_DetailsGuard(t *testing.T) {
	w, _ := New(KindIgnite, product("ignite", models.ProductSubscription))
	require.NoError(t, w.SelectLocation("loc-1"))
	_, _ = w.Next()
	require.NoError(t, w.SelectSession("15:30-16:30"))
	step, _ := w.Next()
	assert.Equal(t, StepDetails, step)

	assert.False(t, w.CanProceed(), "no details yet")
	bad := guardian()
	bad.ParentEmail = "nope"
	require.NoError(t, w.SetStudents(bad))
	assert.False(t, w.CanProceed())

	require.NoError(t, w.SetStudents(guardian()))
	step, err := w.Next()
	require.NoError(t, err)
	assert.Equal(t, StepConfirm, step)

	store := cart.NewStore(cart.NewMemoryStorage(), "k")
	item, err := w.Complete(store)
	require.NoError(t, err)

	got, ok := store.Item(item.ID)
	require.True(t, ok)
	assert.Equal(t, "15:30-16:30", got.SelectedTimeSlot)
	require.Len(t, got.Students, 1)
	assert.Equal(t, "Leo", got.Students[0].FirstName)
}

func TestClose(t *testing.T) {
	w, _ := New(KindCamp, product("camp", models.ProductCamp))
	require.NoError(t, w.SelectLocation("loc-1"))

	w.Close()
	assert.True(t, w.Closed())
	assert.Empty(t, w.Selections().LocationID)
	assert.False(t, w.CanProceed())
	assert.ErrorIs(t, w.SelectLocation("loc-2"), ErrWizardClosed)
	_, err := w.Next()
	assert.ErrorIs(t, err, ErrWizardClosed)
}

func TestReplay(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		req      Request
		wantStep Step
	}{
		{
			name: "camp complete",
			kind: KindCamp,
			req:  Request{LocationID: "loc", Dates: []string{"2026-12-14"}, TimeSlot: "09:00-15:00"},
		},
		{
			name:     "camp missing dates",
			kind:     KindCamp,
			req:      Request{LocationID: "loc", TimeSlot: "09:00-15:00"},
			wantStep: StepDates,
		},
		{
			name:     "birthday missing package",
			kind:     KindBirthday,
			req:      Request{LocationID: "loc", Date: "2026-11-21", TimeSlot: "10:00-12:00"},
			wantStep: StepPackage,
		},
		{
			name: "birthday complete",
			kind: KindBirthday,
			req:  Request{LocationID: "loc", Date: "2026-11-21", TimeSlot: "10:00-12:00", PackageID: "p"},
		},
		{
			name:     "ignite missing details",
			kind:     KindIgnite,
			req:      Request{LocationID: "loc", TimeSlot: "15:30-16:30"},
			wantStep: StepDetails,
		},
		{
			name:     "no location",
			kind:     KindIgnite,
			req:      Request{},
			wantStep: StepLocation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := New(tt.kind, product("p", models.ProductCamp))
			require.NoError(t, err)

			err = w.Replay(tt.req)
			if tt.wantStep == "" {
				require.NoError(t, err)
				assert.Equal(t, StepConfirm, w.Step())
				assert.True(t, w.CanProceed())
				return
			}
			var stepErr *StepError
			require.True(t, errors.As(err, &stepErr), "got %v", err)
			assert.Equal(t, tt.wantStep, stepErr.Step)
			assert.ErrorIs(t, err, ErrTransitionNotAllowed)
		})
	}
}

func TestReplay_UnknownPackage(t *testing.T) {
	w, _ := New(KindBirthday, product("p", models.ProductBirthday))
	err := w.Replay(Request{LocationID: "loc", Date: "2026-11-21", TimeSlot: "10:00", PackageID: "zzz"})
	assert.ErrorIs(t, err, ErrUnknownPackage)
}
