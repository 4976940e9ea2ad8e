package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"activity-storefront/internal/middleware"
	"activity-storefront/internal/models"
	"activity-storefront/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Authenticator signs staff in
type Authenticator interface {
	Login(ctx context.Context, req services.LoginRequest) (*services.LoginResult, error)
}

// CatalogAdmin is the catalog write surface
type CatalogAdmin interface {
	CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, id string, p *models.Product) (*models.Product, error)
	SetProductImage(ctx context.Context, id string, reader io.Reader, filename string) (*models.Product, error)
}

// AdminHandler serves staff login and catalog management
type AdminHandler struct {
	auth    Authenticator
	catalog CatalogAdmin
	logger  *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(auth Authenticator, catalog CatalogAdmin, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{auth: auth, catalog: catalog, logger: logger}
}

// Login exchanges staff credentials for a bearer token
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var errs models.ValidationErrors
	if req.Email == "" {
		errs.Add("email", "is required")
	}
	if req.Password == "" {
		errs.Add("password", "is required")
	}
	if err := errs.ErrOrNil(); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.logger.Warn("Failed staff login", zap.String("remote_ip", middleware.ClientIP(r)))
		}
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateProduct adds a product to the catalog
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if err := decodeJSON(w, r, &product); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	created, err := h.catalog.CreateProduct(r.Context(), &product)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Product created",
		zap.String("product_id", created.ID),
		zap.String("staff_id", staffID(r)))
	writeJSON(w, http.StatusCreated, created)
}

// UpdateProduct replaces product {id}
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var product models.Product
	if err := decodeJSON(w, r, &product); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	updated, err := h.catalog.UpdateProduct(r.Context(), id, &product)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Product updated",
		zap.String("product_id", id),
		zap.String("staff_id", staffID(r)))
	writeJSON(w, http.StatusOK, updated)
}

// UploadImage stores the multipart "image" field as the product's picture
func (h *AdminHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxImageSize+(1<<20))
	if err := r.ParseMultipartForm(services.MaxImageSize); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "File too large or invalid form", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, r, h.logger, models.ValidationErrors{{Field: "image", Message: "is required"}})
		return
	}
	defer file.Close()

	product, err := h.catalog.SetProductImage(r.Context(), id, file, header.Filename)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Product image uploaded",
		zap.String("product_id", id),
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size))
	writeJSON(w, http.StatusOK, product)
}
