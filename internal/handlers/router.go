package handlers

import (
	"net/http"
	"time"

	"activity-storefront/internal/middleware"
	"activity-storefront/internal/models"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RouterConfig collects everything the HTTP surface is built from
type RouterConfig struct {
	Cart     *CartHandler
	Wizards  *WizardHandler
	Catalog  *CatalogHandler
	Calendar *CalendarHandler
	Checkout *CheckoutHandler
	Orders   *OrderHandler
	Admin    *AdminHandler
	Health   *HealthHandler

	Sessions       *middleware.SessionMiddleware
	Auth           *middleware.AuthMiddleware
	LoginLimiter   *middleware.LoginRateLimiter
	CORS           middleware.CORSConfig
	Tracing        func(http.Handler) http.Handler
	UploadsDir     string
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// NewRouter wires the JSON API
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.NotFound(middleware.NotFoundHandler().ServeHTTP)
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler().ServeHTTP)

	if cfg.Tracing != nil {
		r.Use(cfg.Tracing)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(chimiddleware.CleanPath)
	r.Use(middleware.CORSMiddleware(cfg.CORS))
	r.Use(middleware.SecurityHeadersMiddleware)

	r.Get("/health", cfg.Health.Health)

	if cfg.UploadsDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(timeout))

		// Catalog
		r.Get("/products", cfg.Catalog.ListProducts)
		r.Get("/products/{id}", cfg.Catalog.GetProduct)
		r.Get("/products/{id}/schedule", cfg.Catalog.ProductSchedule)
		r.Get("/locations", cfg.Catalog.ListLocations)

		// Shopper routes share the cart session
		r.Group(func(r chi.Router) {
			r.Use(cfg.Sessions.CartSession)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cfg.Cart.GetCart)
				r.Delete("/", cfg.Cart.ClearCart)
				r.Post("/items", cfg.Cart.AddItem)
				r.Patch("/items/{id}", cfg.Cart.UpdateItem)
				r.Delete("/items/{id}", cfg.Cart.RemoveItem)
				r.Post("/items/{id}/students", cfg.Cart.AddStudent)
				r.Delete("/items/{id}/students/{studentId}", cfg.Cart.RemoveStudent)
				r.Post("/items/{id}/addons", cfg.Cart.SetAddOn)
			})

			r.Post("/wizards/{kind}", cfg.Wizards.Complete)

			r.Post("/stripe/create-payment-intent", cfg.Checkout.CreatePaymentIntent)
			r.Post("/stripe/confirm-payment", cfg.Checkout.ConfirmPayment)
		})

		r.Get("/stripe/payment-status", cfg.Checkout.PaymentStatus)
		r.Post("/stripe/webhook", cfg.Checkout.Webhook)

		r.Get("/orders/{id}", cfg.Orders.GetOrder)
		r.Get("/orders/{id}/receipt", cfg.Orders.Receipt)

		// Staff routes
		r.Route("/calendar/events", func(r chi.Router) {
			r.Use(cfg.Auth.RequireStaff)
			r.Get("/", cfg.Calendar.ListEvents)
			r.Post("/", cfg.Calendar.CreateEvent)
			r.Patch("/{id}", cfg.Calendar.UpdateEvent)
			r.Delete("/{id}", cfg.Calendar.DeleteEvent)
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(middleware.LoginRateLimit(cfg.LoginLimiter)).Post("/login", cfg.Admin.Login)

			r.Group(func(r chi.Router) {
				r.Use(cfg.Auth.RequireStaff)
				r.Use(cfg.Auth.RequireRole(models.StaffAdmin))
				r.Post("/products", cfg.Admin.CreateProduct)
				r.Put("/products/{id}", cfg.Admin.UpdateProduct)
				r.Post("/products/{id}/image", cfg.Admin.UploadImage)
			})
		})
	})

	return r
}
