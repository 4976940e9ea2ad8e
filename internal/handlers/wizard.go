package handlers

import (
	"context"
	"fmt"
	"net/http"

	"activity-storefront/internal/models"
	"activity-storefront/internal/wizard"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProductCatalog is the catalog read used by the booking wizards
type ProductCatalog interface {
	ProductLookup
	ListProducts(ctx context.Context, productType models.ProductType) ([]*models.Product, error)
}

// WizardRequest is a full set of wizard selections. Camp and ignite flows
// book ProductID; the birthday flow chooses PackageID among birthday products.
type WizardRequest struct {
	ProductID string `json:"product_id,omitempty"`
	wizard.Request
}

// WizardResult is the line added by a completed wizard
type WizardResult struct {
	Item models.EnhancedCartItem `json:"item"`
	Cart CartView                `json:"cart"`
}

// WizardHandler runs booking wizards server-side and hands the result to the cart
type WizardHandler struct {
	carts   *CartHandler
	catalog ProductCatalog
	logger  *zap.Logger
}

// NewWizardHandler creates a new wizard handler
func NewWizardHandler(carts *CartHandler, catalog ProductCatalog, logger *zap.Logger) *WizardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WizardHandler{carts: carts, catalog: catalog, logger: logger}
}

// Complete replays the submitted selections through the wizard for {kind}
// and adds the assembled item to the cart
func (h *WizardHandler) Complete(w http.ResponseWriter, r *http.Request) {
	kind := wizard.Kind(chi.URLParam(r, "kind"))

	var req WizardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	products, err := h.productsFor(r.Context(), kind, req.ProductID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	wz, err := wizard.New(kind, products...)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := wz.Replay(req.Request); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	store := h.carts.open(w, r)
	item, err := wz.Complete(store)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Wizard completed",
		zap.String("kind", string(kind)),
		zap.String("item_id", item.ID),
		zap.String("product_id", item.Product.ID))
	writeJSON(w, http.StatusCreated, WizardResult{Item: item, Cart: viewOf(store)})
}

func (h *WizardHandler) productsFor(ctx context.Context, kind wizard.Kind, productID string) ([]models.Product, error) {
	switch kind {
	case wizard.KindBirthday:
		list, err := h.catalog.ListProducts(ctx, models.ProductBirthday)
		if err != nil {
			return nil, err
		}
		out := make([]models.Product, 0, len(list))
		for _, p := range list {
			out = append(out, *p)
		}
		return out, nil
	case wizard.KindCamp, wizard.KindIgnite:
		if productID == "" {
			return nil, models.ValidationErrors{{Field: "product_id", Message: "is required"}}
		}
		p, err := h.catalog.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return nil, models.ErrProductNotFound
		}
		return []models.Product{*p}, nil
	default:
		return nil, fmt.Errorf("%w: %q", wizard.ErrUnknownKind, kind)
	}
}
