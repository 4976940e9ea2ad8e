package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"activity-storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogFixture(t *testing.T) (*CatalogService, *fakeDB) {
	t.Helper()
	db := newFakeDB()
	images := NewImageService(NewLocalStorageService(t.TempDir(), "/uploads", nil), nil)
	return NewCatalogService(fakeProducts{db}, fakeLocations{db}, fakeTemplates{db}, images, nil), db
}

func TestListProducts(t *testing.T) {
	svc, db := newCatalogFixture(t)
	ctx := context.Background()
	for _, p := range []*models.Product{
		{ID: uuid.NewString(), Name: "Camp", Type: models.ProductCamp, Active: true},
		{ID: uuid.NewString(), Name: "Party", Type: models.ProductBirthday, Active: true},
		{ID: uuid.NewString(), Name: "Retired Camp", Type: models.ProductCamp, Active: false},
	} {
		db.products[p.ID] = p
	}

	all, err := svc.ListProducts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	camps, err := svc.ListProducts(ctx, models.ProductCamp)
	require.NoError(t, err)
	require.Len(t, camps, 1)
	assert.Equal(t, "Camp", camps[0].Name)

	_, err = svc.ListProducts(ctx, models.ProductType("WORKSHOP"))
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestCreateAndUpdateProduct(t *testing.T) {
	svc, _ := newCatalogFixture(t)
	ctx := context.Background()

	product := &models.Product{
		Name:     "Coding Club",
		Type:     models.ProductSubscription,
		Pricing:  models.Pricing{BasePrice: decimal.NewFromInt(30)},
		Duration: 60,
		Capacity: 12,
		AgeRange: models.AgeRange{Min: 7, Max: 12},
		Active:   true,
	}
	created, err := svc.CreateProduct(ctx, product)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	update := *created
	update.Capacity = 16
	updated, err := svc.UpdateProduct(ctx, created.ID, &update)
	require.NoError(t, err)
	assert.Equal(t, 16, updated.Capacity)

	update.Name = ""
	_, err = svc.UpdateProduct(ctx, created.ID, &update)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.UpdateProduct(ctx, uuid.NewString(), &update)
	assert.ErrorIs(t, err, models.ErrProductNotFound)

	_, err = svc.CreateProduct(ctx, &models.Product{Name: "Nameless type"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestSetProductImage(t *testing.T) {
	svc, db := newCatalogFixture(t)
	ctx := context.Background()
	product := &models.Product{ID: uuid.NewString(), Name: "Camp", Type: models.ProductCamp, Active: true}
	db.products[product.ID] = product

	updated, err := svc.SetProductImage(ctx, product.ID, bytes.NewReader(pngBytes(t, 400, 300)), "camp.png")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(updated.ImageURL, "/display.jpg"))
	assert.Equal(t, updated.ImageURL, db.imageURLs[product.ID])

	_, err = svc.SetProductImage(ctx, uuid.NewString(), bytes.NewReader(pngBytes(t, 10, 10)), "x.png")
	assert.ErrorIs(t, err, models.ErrProductNotFound)

	noUploads := NewCatalogService(fakeProducts{db}, fakeLocations{db}, fakeTemplates{db}, nil, nil)
	_, err = noUploads.SetProductImage(ctx, product.ID, bytes.NewReader(nil), "x.png")
	assert.Error(t, err)
}

func TestProductSchedule(t *testing.T) {
	svc, db := newCatalogFixture(t)
	product := &models.Product{ID: uuid.NewString(), Name: "Coding Club", Type: models.ProductSubscription, Active: true}
	db.products[product.ID] = product
	db.templates = append(db.templates, &models.RecurringTemplate{
		ID:         uuid.NewString(),
		ProductID:  product.ID,
		LocationID: "loc-1",
		DayOfWeek:  time.Tuesday,
		StartTime:  "16:00",
		EndTime:    "17:30",
		StartDate:  time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2030, 2, 28, 0, 0, 0, 0, time.UTC),
		Capacity:   10,
	})

	// Tuesdays in February 2030: 5, 12, 19, 26.
	now := time.Date(2030, 2, 12, 18, 0, 0, 0, time.UTC)
	sessions, err := svc.ProductSchedule(context.Background(), product.ID, now)
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	assert.Equal(t, "2030-02-12", sessions[0].Date)
	assert.Equal(t, "16:00-17:30", sessions[0].TimeSlot)
	assert.Equal(t, time.Date(2030, 2, 12, 16, 0, 0, 0, time.UTC), sessions[0].Start)
	assert.Equal(t, 10, sessions[0].Capacity)
	assert.Equal(t, "2030-02-26", sessions[2].Date)

	_, err = svc.ProductSchedule(context.Background(), uuid.NewString(), now)
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}
