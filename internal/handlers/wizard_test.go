package handlers

import (
	"net/http"
	"testing"

	"activity-storefront/internal/models"
	"activity-storefront/internal/wizard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizardCampCompletes(t *testing.T) {
	h := newHarness(t)

	rr := h.do(http.MethodPost, "/api/wizards/camp", WizardRequest{
		ProductID: "camp-1",
		Request: wizard.Request{
			LocationID: "loc-1",
			Dates:      []string{"2030-01-14", "2030-01-15", "2030-01-16"},
			TimeSlot:   "09:00-15:00",
			Quantity:   1,
			Students:   []models.StudentDetails{validStudent()},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var result WizardResult
	decodeData(t, rr, &result)
	assert.Equal(t, "camp-1", result.Item.Product.ID)
	assert.Equal(t, []string{"2030-01-14", "2030-01-15", "2030-01-16"}, result.Item.SelectedDates)
	require.Len(t, result.Cart.Items, 1)
	assert.Len(t, result.Cart.Items[0].Students, 1, "students are handed to the cart")

	rr = h.do(http.MethodGet, "/api/cart", nil)
	var view CartView
	decodeData(t, rr, &view)
	assert.Len(t, view.Items, 1)
}

func TestWizardBirthdayPicksPackage(t *testing.T) {
	h := newHarness(t)

	rr := h.do(http.MethodPost, "/api/wizards/birthday", WizardRequest{
		Request: wizard.Request{
			LocationID: "loc-1",
			Date:       "2030-03-09",
			TimeSlot:   "10:00-12:00",
			PackageID:  "party-deluxe",
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var result WizardResult
	decodeData(t, rr, &result)
	assert.Equal(t, "party-deluxe", result.Item.Product.ID)
	assert.Equal(t, "2030-03-09", result.Item.SelectedDate)
}

func TestWizardRejects(t *testing.T) {
	tests := []struct {
		name   string
		kind   string
		body   WizardRequest
		status int
	}{
		{"unknown kind", "pony", WizardRequest{ProductID: "camp-1"}, http.StatusBadRequest},
		{"camp without product", "camp", WizardRequest{}, http.StatusBadRequest},
		{"unknown product", "camp", WizardRequest{ProductID: "nope"}, http.StatusNotFound},
		{"inactive product", "ignite", WizardRequest{ProductID: "retired"}, http.StatusNotFound},
		{"missing location", "camp", WizardRequest{
			ProductID: "camp-1",
			Request:   wizard.Request{Dates: []string{"2030-01-14"}, TimeSlot: "09:00"},
		}, http.StatusBadRequest},
		{"ignite without students", "ignite", WizardRequest{
			ProductID: "camp-1",
			Request:   wizard.Request{LocationID: "loc-1", TimeSlot: "16:00-17:00"},
		}, http.StatusBadRequest},
		{"birthday unknown package", "birthday", WizardRequest{
			Request: wizard.Request{LocationID: "loc-1", Date: "2030-03-09", TimeSlot: "10:00", PackageID: "pony-party"},
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			rr := h.do(http.MethodPost, "/api/wizards/"+tt.kind, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			decodeFailure(t, rr)

			rr = h.do(http.MethodGet, "/api/cart", nil)
			var view CartView
			decodeData(t, rr, &view)
			assert.Empty(t, view.Items, "a failed wizard adds nothing")
		})
	}
}
