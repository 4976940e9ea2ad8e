package handlers

import (
	"context"
	"errors"
	"net/http"

	"activity-storefront/internal/cart"
	"activity-storefront/internal/middleware"
	"activity-storefront/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

var errCartItemNotFound = errors.New("cart item not found")

// CartStorage returns the storage backing the cart of the current request
type CartStorage func(w http.ResponseWriter, r *http.Request) cart.Storage

// SessionCartStorage keeps carts in a gorilla session keyed by the shopper's cookie
func SessionCartStorage(store sessions.Store) CartStorage {
	return func(w http.ResponseWriter, r *http.Request) cart.Storage {
		return cart.NewSessionStorage(store, w, r)
	}
}

// SharedCartStorage keeps every cart in one server-side store (Redis or memory)
func SharedCartStorage(storage cart.Storage) CartStorage {
	return func(http.ResponseWriter, *http.Request) cart.Storage {
		return storage
	}
}

// ProductLookup is the catalog read used when adding to the cart
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

// CartHandler serves the session cart API
type CartHandler struct {
	storage  CartStorage
	products ProductLookup
	logger   *zap.Logger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(storage CartStorage, products ProductLookup, logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{storage: storage, products: products, logger: logger}
}

// CartView is the cart as returned to the storefront
type CartView struct {
	Items       []models.EnhancedCartItem `json:"items"`
	Summary     models.CartSummary        `json:"summary"`
	Validation  models.CartValidation     `json:"validation"`
	LastOrderID string                    `json:"last_order_id,omitempty"`
	SaveError   string                    `json:"save_error,omitempty"`
}

const cartSaveFailed = "Your cart could not be saved. Please try again."

func viewOf(store *cart.Store) CartView {
	view := CartView{
		Items:       store.Items(),
		Summary:     store.Summary(),
		Validation:  store.Validation(),
		LastOrderID: store.LastOrderID(),
	}
	if store.LastError() != nil {
		view.SaveError = cartSaveFailed
	}
	return view
}

// open loads the cart bound to the request's session id.
func (h *CartHandler) open(w http.ResponseWriter, r *http.Request) *cart.Store {
	store := cart.NewStore(h.storage(w, r), cartKey(r), cart.WithLogger(h.logger))
	store.Load(r.Context())
	return store
}

func cartKey(r *http.Request) string {
	return middleware.CartIDFromContext(r.Context())
}

// GetCart returns items, summary and validation
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(h.open(w, r)))
}

// AddItem adds a product line to the cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req models.CartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	product, err := h.products.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if !product.Active {
		respondError(w, r, h.logger, models.ErrProductNotFound)
		return
	}

	store := h.open(w, r)
	item := store.AddItem(*product, cart.AddItemOptions{
		Quantity:   req.Quantity,
		Date:       req.Date,
		Dates:      req.Dates,
		TimeSlot:   req.TimeSlot,
		LocationID: req.LocationID,
		Notes:      req.Notes,
	})

	h.logger.Debug("Cart item added",
		zap.String("item_id", item.ID),
		zap.String("product_id", product.ID))
	writeJSON(w, http.StatusCreated, viewOf(store))
}

// UpdateItemRequest changes parts of a line; nil fields are left alone
type UpdateItemRequest struct {
	Quantity *int     `json:"quantity,omitempty" validate:"omitempty,min=0,max=50"`
	Date     *string  `json:"date,omitempty" validate:"omitempty,isodate"`
	Dates    []string `json:"dates,omitempty" validate:"dive,isodate"`
	TimeSlot *string  `json:"time_slot,omitempty" validate:"omitempty,timeslot"`
	Notes    *string  `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// Validate validates the update request
func (u *UpdateItemRequest) Validate() error {
	return models.ValidateStruct(u).ErrOrNil()
}

// UpdateItem changes quantity, schedule or notes of a line
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	var req UpdateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	store := h.open(w, r)
	if _, ok := store.Item(itemID); !ok {
		middleware.WriteError(w, http.StatusNotFound, errCartItemNotFound.Error(), nil)
		return
	}

	if req.Quantity != nil {
		store.UpdateQuantity(itemID, *req.Quantity)
	}
	switch {
	case len(req.Dates) > 0:
		store.UpdateItemDates(itemID, req.Dates)
	case req.Date != nil:
		store.UpdateItemDate(itemID, *req.Date)
	}
	if req.TimeSlot != nil {
		store.UpdateItemTime(itemID, *req.TimeSlot)
	}
	if req.Notes != nil {
		store.UpdateItemNotes(itemID, *req.Notes)
	}

	writeJSON(w, http.StatusOK, viewOf(store))
}

// RemoveItem deletes a line; unknown ids succeed
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	store := h.open(w, r)
	store.RemoveItem(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, viewOf(store))
}

// AddStudent attaches a validated student to a line
func (h *CartHandler) AddStudent(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	var student models.StudentDetails
	if err := decodeJSON(w, r, &student); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := student.Validate(); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	store := h.open(w, r)
	if _, ok := store.Item(itemID); !ok {
		middleware.WriteError(w, http.StatusNotFound, errCartItemNotFound.Error(), nil)
		return
	}
	store.AddStudent(itemID, student)

	writeJSON(w, http.StatusCreated, viewOf(store))
}

// RemoveStudent detaches a student from a line
func (h *CartHandler) RemoveStudent(w http.ResponseWriter, r *http.Request) {
	store := h.open(w, r)
	store.RemoveStudent(chi.URLParam(r, "id"), chi.URLParam(r, "studentId"))
	writeJSON(w, http.StatusOK, viewOf(store))
}

// AddOnRequest selects an add-on for a line
type AddOnRequest struct {
	AddOnID  string `json:"add_on_id"`
	Quantity int    `json:"quantity"`
}

// SetAddOn sets or clears an add-on on a line
func (h *CartHandler) SetAddOn(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	var req AddOnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if req.AddOnID == "" {
		respondError(w, r, h.logger, models.ValidationErrors{{Field: "add_on_id", Message: "is required"}})
		return
	}

	store := h.open(w, r)
	item, ok := store.Item(itemID)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, errCartItemNotFound.Error(), nil)
		return
	}
	addOn, ok := item.Product.FindAddOn(req.AddOnID)
	if !ok || !addOn.Active {
		middleware.WriteError(w, http.StatusNotFound, "add-on not offered for this product", nil)
		return
	}
	store.AddItemAddOn(itemID, addOn, req.Quantity)

	writeJSON(w, http.StatusOK, viewOf(store))
}

// ClearCart empties the cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	store := h.open(w, r)
	store.Clear()
	writeJSON(w, http.StatusOK, viewOf(store))
}
