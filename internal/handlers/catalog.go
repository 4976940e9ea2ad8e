package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"activity-storefront/internal/models"
	"activity-storefront/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Catalog is the public catalog surface
type Catalog interface {
	ProductCatalog
	ListLocations(ctx context.Context) ([]*models.Location, error)
	ProductSchedule(ctx context.Context, productID string, now time.Time) ([]services.Session, error)
}

// CatalogHandler serves products and locations
type CatalogHandler struct {
	catalog Catalog
	now     func() time.Time
	logger  *zap.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalog Catalog, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{catalog: catalog, now: time.Now, logger: logger}
}

// ListProducts returns active products, filtered by ?type=
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	productType := models.ProductType(strings.ToUpper(r.URL.Query().Get("type")))

	products, err := h.catalog.ListProducts(r.Context(), productType)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if products == nil {
		products = []*models.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// GetProduct returns one active product with its add-ons
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if !product.Active {
		respondError(w, r, h.logger, models.ErrProductNotFound)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// ProductSchedule returns the upcoming sessions of a recurring product
func (h *CatalogHandler) ProductSchedule(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.catalog.ProductSchedule(r.Context(), chi.URLParam(r, "id"), h.now())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if sessions == nil {
		sessions = []services.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// ListLocations returns the active venues
func (h *CatalogHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.catalog.ListLocations(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if locations == nil {
		locations = []*models.Location{}
	}
	writeJSON(w, http.StatusOK, locations)
}
