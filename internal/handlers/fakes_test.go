package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"activity-storefront/internal/calendar"
	"activity-storefront/internal/cart"
	"activity-storefront/internal/config"
	"activity-storefront/internal/middleware"
	"activity-storefront/internal/models"
	"activity-storefront/internal/services"

	"github.com/gorilla/sessions"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	testSessionSecret = "test-session-secret-0123456789abcdef"
	testWebhookSecret = "whsec_test"
)

type fakeCatalog struct {
	products  map[string]*models.Product
	locations []*models.Location
	schedule  []services.Session
	listErr   error

	created  []*models.Product
	updated  []*models.Product
	uploaded []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{products: map[string]*models.Product{}}
}

func (f *fakeCatalog) add(p models.Product) *models.Product {
	f.products[p.ID] = &p
	return &p
}

func (f *fakeCatalog) ListProducts(_ context.Context, productType models.ProductType) ([]*models.Product, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.Product
	for _, p := range f.products {
		if p.Active && (productType == "" || p.Type == productType) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetProduct(_ context.Context, id string) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakeCatalog) ListLocations(context.Context) ([]*models.Location, error) {
	return f.locations, nil
}

func (f *fakeCatalog) ProductSchedule(_ context.Context, productID string, _ time.Time) ([]services.Session, error) {
	if _, ok := f.products[productID]; !ok {
		return nil, models.ErrProductNotFound
	}
	return f.schedule, nil
}

func (f *fakeCatalog) CreateProduct(_ context.Context, p *models.Product) (*models.Product, error) {
	if p.Name == "" {
		return nil, models.ValidationErrors{{Field: "name", Message: "is required"}}
	}
	p.ID = "new-product"
	f.created = append(f.created, p)
	return p, nil
}

func (f *fakeCatalog) UpdateProduct(_ context.Context, id string, p *models.Product) (*models.Product, error) {
	if _, ok := f.products[id]; !ok {
		return nil, models.ErrProductNotFound
	}
	p.ID = id
	f.updated = append(f.updated, p)
	return p, nil
}

func (f *fakeCatalog) SetProductImage(_ context.Context, id string, reader io.Reader, filename string) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return nil, err
	}
	f.uploaded = append(f.uploaded, filename)
	c := *p
	c.ImageURL = "/uploads/products/" + id + "/display.jpg"
	return &c, nil
}

type fakeBookings struct {
	events     []calendar.Event
	lastFilter calendar.Filter
	createErr  error
	updateErr  error
	created    []*models.BookingCreateRequest
	updates    map[string]calendar.EventUpdate
	deleted    []string
}

func (f *fakeBookings) CalendarEvents(_ context.Context, filter calendar.Filter) ([]calendar.Event, error) {
	f.lastFilter = filter
	return f.events, nil
}

func (f *fakeBookings) CreateBooking(_ context.Context, req *models.BookingCreateRequest) (*models.Booking, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	b := req.ToBooking()
	b.ID = "booking-new"
	return b, nil
}

func (f *fakeBookings) Callbacks() calendar.Callbacks {
	return calendar.Callbacks{
		OnEventUpdate: func(_ context.Context, id string, u calendar.EventUpdate) (*models.Booking, error) {
			if f.updateErr != nil {
				return nil, f.updateErr
			}
			if f.updates == nil {
				f.updates = map[string]calendar.EventUpdate{}
			}
			f.updates[id] = u
			return &models.Booking{ID: id, Status: models.BookingConfirmed}, nil
		},
		OnEventDelete: func(_ context.Context, id string) error {
			if id == "missing" {
				return models.ErrBookingNotFound
			}
			f.deleted = append(f.deleted, id)
			return nil
		},
	}
}

type fakeCheckout struct {
	createErr  error
	lastItems  int
	lastSess   *models.CheckoutSession
	intent     *services.PaymentIntent
	confirm    *services.ConfirmationResult
	confirmErr error
	webhookErr error
	events     []*services.WebhookEvent
}

func (f *fakeCheckout) CreatePaymentIntent(_ context.Context, c services.Cart, session *models.CheckoutSession) (*services.CheckoutResult, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.lastItems = len(c.Items())
	f.lastSess = session
	if f.lastItems == 0 {
		return nil, models.ErrEmptyCart
	}
	return &services.CheckoutResult{
		OrderID:         "order-1",
		PaymentIntentID: "pi_123",
		ClientSecret:    "pi_123_secret",
		Amount:          c.Summary().Total.Shift(2).IntPart(),
		Currency:        "aud",
		Summary:         c.Summary(),
	}, nil
}

func (f *fakeCheckout) PaymentStatus(_ context.Context, id string) (*services.PaymentIntent, error) {
	if f.intent == nil || f.intent.ID != id {
		return nil, services.ErrPaymentProvider
	}
	return f.intent, nil
}

func (f *fakeCheckout) ConfirmPayment(_ context.Context, id string, c services.Cart) (*services.ConfirmationResult, error) {
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	if f.confirm.Status == services.IntentSucceeded && f.confirm.Order != nil {
		c.ClearAfterSuccess(f.confirm.Order.ID)
	}
	return f.confirm, nil
}

func (f *fakeCheckout) HandleWebhook(_ context.Context, event *services.WebhookEvent) error {
	if f.webhookErr != nil {
		return f.webhookErr
	}
	f.events = append(f.events, event)
	return nil
}

type fakeOrders struct {
	orders map[string]*services.OrderDetails
}

func (f *fakeOrders) GetOrder(_ context.Context, id string) (*services.OrderDetails, error) {
	d, ok := f.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return d, nil
}

type fakeAuth struct {
	password string
	tokens   map[string]*services.StaffClaims
}

func (f *fakeAuth) Login(_ context.Context, req services.LoginRequest) (*services.LoginResult, error) {
	if req.Email != "admin@example.com" || req.Password != f.password {
		return nil, services.ErrInvalidCredentials
	}
	return &services.LoginResult{
		Token:     "admin-token",
		ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Staff:     &models.Staff{ID: "staff-1", Email: req.Email, Role: models.StaffAdmin},
	}, nil
}

func (f *fakeAuth) ParseToken(token string) (*services.StaffClaims, error) {
	if c, ok := f.tokens[token]; ok {
		return c, nil
	}
	return nil, services.ErrInvalidCredentials
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

// harness is the full router over fakes, with a cookie-carrying client.
type harness struct {
	t        *testing.T
	router   http.Handler
	catalog  *fakeCatalog
	bookings *fakeBookings
	checkout *fakeCheckout
	orders   *fakeOrders
	auth     *fakeAuth
	limiter  *middleware.LoginRateLimiter
	sessions *sessions.CookieStore
	cookies  map[string]*http.Cookie
}

type harnessOption func(*RouterConfig, *harness)

// withSessionCarts keeps carts in server-side gorilla sessions instead of memory.
func withSessionCarts() harnessOption {
	return func(cfg *RouterConfig, h *harness) {
		store := middleware.NewFilesystemStore(h.t.TempDir(), testSessionSecret, 3600, false)
		cfg.Cart = NewCartHandler(SessionCartStorage(store), h.catalog, nil)
		cfg.Wizards = NewWizardHandler(cfg.Cart, h.catalog, nil)
		cfg.Checkout = NewCheckoutHandler(cfg.Cart, h.checkout, cfg.Checkout.verifier, nil)
	}
}

func withDatabase(p Pinger) harnessOption {
	return func(cfg *RouterConfig, _ *harness) {
		cfg.Health = NewHealthHandler(map[string]Pinger{"database": p}, nil)
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		t:        t,
		catalog:  newFakeCatalog(),
		bookings: &fakeBookings{},
		checkout: &fakeCheckout{},
		orders:   &fakeOrders{orders: map[string]*services.OrderDetails{}},
		auth: &fakeAuth{
			password: "correct horse",
			tokens: map[string]*services.StaffClaims{
				"admin-token": {StaffID: "staff-1", Email: "admin@example.com", Role: models.StaffAdmin},
				"staff-token": {StaffID: "staff-2", Email: "desk@example.com", Role: models.StaffUser},
			},
		},
		limiter: middleware.NewLoginRateLimiter(3, time.Minute),
		cookies: map[string]*http.Cookie{},
	}
	t.Cleanup(h.limiter.Stop)

	h.catalog.add(campProduct())
	h.catalog.add(birthdayProduct("party-basic", 300))
	h.catalog.add(birthdayProduct("party-deluxe", 450))
	retired := campProduct()
	retired.ID = "retired"
	retired.Active = false
	h.catalog.add(retired)

	h.sessions = middleware.NewCookieStore(testSessionSecret, 3600, false)
	stripe := services.NewStripeService(config.StripeConfig{WebhookSecret: testWebhookSecret}, nil)
	carts := NewCartHandler(SharedCartStorage(cart.NewMemoryStorage()), h.catalog, nil)

	cfg := RouterConfig{
		Cart:     carts,
		Wizards:  NewWizardHandler(carts, h.catalog, nil),
		Catalog:  NewCatalogHandler(h.catalog, nil),
		Calendar: NewCalendarHandler(h.bookings, nil),
		Checkout: NewCheckoutHandler(carts, h.checkout, stripe, nil),
		Orders:   NewOrderHandler(h.orders, services.NewReceiptService("Activity Club", "https://shop.example.com"), nil),
		Admin:    NewAdminHandler(h.auth, h.catalog, nil),
		Health:   NewHealthHandler(map[string]Pinger{"database": fakePinger{}}, nil),

		Sessions:     middleware.NewSessionMiddleware(h.sessions, nil),
		Auth:         middleware.NewAuthMiddleware(h.auth, nil),
		LoginLimiter: h.limiter,
		CORS:         middleware.DefaultCORSConfig([]string{"https://shop.example.com"}),
	}
	for _, opt := range opts {
		opt(&cfg, h)
	}
	h.router = NewRouter(cfg)
	return h
}

// do sends a request carrying the cookies of earlier responses.
func (h *harness) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(h.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	for _, c := range h.cookies {
		req.AddCookie(c)
	}

	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)

	for _, c := range rr.Result().Cookies() {
		h.cookies[c.Name] = c
	}
	return rr
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	require.True(t, env.Success, rr.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func decodeFailure(t *testing.T, rr *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var body middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	require.False(t, body.Success)
	return body
}

func campProduct() models.Product {
	return models.Product{
		ID:       "camp-1",
		Name:     "Holiday Robotics Camp",
		Type:     models.ProductCamp,
		Pricing:  models.Pricing{BasePrice: decimal.NewFromInt(100)},
		Duration: 360,
		Capacity: 20,
		AgeRange: models.AgeRange{Min: 5, Max: 12},
		Active:   true,
		AddOns: []models.AddOn{
			{ID: "lunch", Name: "Lunch pack", Price: decimal.NewFromInt(12), Active: true},
			{ID: "old", Name: "Retired add-on", Price: decimal.NewFromInt(5), Active: false},
		},
	}
}

func birthdayProduct(id string, price int64) models.Product {
	return models.Product{
		ID:       id,
		Name:     "Party " + id,
		Type:     models.ProductBirthday,
		Pricing:  models.Pricing{BasePrice: decimal.NewFromInt(price)},
		Duration: 120,
		Capacity: 15,
		AgeRange: models.AgeRange{Min: 4, Max: 12},
		Active:   true,
	}
}

func validStudent() models.StudentDetails {
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
