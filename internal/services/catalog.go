package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"activity-storefront/internal/models"
	"activity-storefront/internal/repositories"

	"go.uber.org/zap"
)

// Session is one dated occurrence of a recurring program
type Session struct {
	ProductID  string    `json:"product_id"`
	LocationID string    `json:"location_id"`
	Date       string    `json:"date"`
	TimeSlot   string    `json:"time_slot"`
	Start      time.Time `json:"start"`
	Capacity   int       `json:"capacity"`
}

// CatalogService serves products and locations
type CatalogService struct {
	products  ProductRepository
	locations LocationRepository
	templates TemplateRepository
	images    *ImageService
	logger    *zap.Logger
}

// NewCatalogService creates a new catalog service. images may be nil when
// uploads are disabled.
func NewCatalogService(products ProductRepository, locations LocationRepository, templates TemplateRepository, images *ImageService, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		products:  products,
		locations: locations,
		templates: templates,
		images:    images,
		logger:    logger,
	}
}

// ListProducts returns active products, optionally of one type
func (s *CatalogService) ListProducts(ctx context.Context, productType models.ProductType) ([]*models.Product, error) {
	if productType != "" && !productType.Valid() {
		return nil, models.ValidationErrors{{Field: "type", Message: "must be one of CAMP, BIRTHDAY, SUBSCRIPTION"}}
	}
	return s.products.List(ctx, repositories.ProductFilter{Type: productType, ActiveOnly: true})
}

// GetProduct returns a product with its add-ons
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.products.GetByID(ctx, id)
}

// ListLocations returns active locations
func (s *CatalogService) ListLocations(ctx context.Context) ([]*models.Location, error) {
	return s.locations.List(ctx, true)
}

// GetLocation returns a location
func (s *CatalogService) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	return s.locations.GetByID(ctx, id)
}

// CreateProduct validates and stores a new product
func (s *CatalogService) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	created, err := s.products.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Product created", zap.String("product_id", created.ID), zap.String("name", created.Name))
	return created, nil
}

// UpdateProduct replaces the product with id
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, p *models.Product) (*models.Product, error) {
	if _, err := s.products.GetByID(ctx, id); err != nil {
		return nil, err
	}
	p.ID = id
	if err := p.Validate(); err != nil {
		return nil, err
	}
	updated, err := s.products.Update(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Product updated", zap.String("product_id", id))
	return updated, nil
}

// SetProductImage stores an uploaded image and points the product at it
func (s *CatalogService) SetProductImage(ctx context.Context, id string, reader io.Reader, filename string) (*models.Product, error) {
	if s.images == nil {
		return nil, fmt.Errorf("image uploads are not configured")
	}
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.images.UploadProductImage(ctx, id, reader, filename)
	if err != nil {
		return nil, err
	}

	url := result.URL("display")
	if err := s.products.SetImageURL(ctx, id, url); err != nil {
		_ = s.images.DeleteImage(ctx, result.KeyPrefix)
		return nil, err
	}
	product.ImageURL = url
	return product, nil
}

// ProductSchedule lists the upcoming sessions of a subscription product from
// its recurring templates. Past sessions are left out.
func (s *CatalogService) ProductSchedule(ctx context.Context, productID string, now time.Time) ([]Session, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	templates, err := s.templates.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var sessions []Session
	for _, t := range templates {
		slot := t.StartTime + "-" + t.EndTime
		from, _, ok := models.ParseTimeSlot(slot, 0)
		if !ok {
			continue
		}
		for _, day := range t.Occurrences() {
			if day.Before(today) {
				continue
			}
			date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location())
			sessions = append(sessions, Session{
				ProductID:  t.ProductID,
				LocationID: t.LocationID,
				Date:       date.Format("2006-01-02"),
				TimeSlot:   slot,
				Start:      date.Add(from),
				Capacity:   t.Capacity,
			})
		}
	}
	return sessions, nil
}
