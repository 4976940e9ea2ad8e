package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"activity-storefront/internal/cart"
	"activity-storefront/internal/config"
	"activity-storefront/internal/database"
	"activity-storefront/internal/handlers"
	"activity-storefront/internal/logger"
	"activity-storefront/internal/middleware"
	"activity-storefront/internal/repositories"
	"activity-storefront/internal/services"
	"activity-storefront/internal/telemetry"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Must(cfg.Server.Env)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(cfg.Telemetry, os.Stdout, log)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	db, err := database.NewConnection(ctx, database.Config{
		URL:      cfg.Database.URL,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	}, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// Repositories
	productRepo := repositories.NewProductRepository(db.DB)
	locationRepo := repositories.NewLocationRepository(db.DB)
	templateRepo := repositories.NewTemplateRepository(db.DB)
	orderRepo := repositories.NewOrderRepository(db.DB)
	bookingRepo := repositories.NewBookingRepository(db.DB)
	staffRepo := repositories.NewStaffRepository(db.DB)

	// Outbound integrations
	var payments services.PaymentService
	if cfg.Stripe.SecretKey != "" {
		stripe := services.NewStripeService(cfg.Stripe, log)
		stripe.UseTransport(telemetry.Transport(nil))
		payments = stripe
	} else {
		payments = services.NewMockPaymentService(true, log)
	}

	var email services.EmailService
	if cfg.Resend.APIKey != "" {
		resend := services.NewResendEmailService(cfg.Resend, log)
		resend.UseTransport(telemetry.Transport(nil))
		email = resend
	} else {
		email = services.NewMockEmailService(log)
	}

	storage := services.NewStorageService(ctx, cfg, log)
	images := services.NewImageService(storage, log)
	receipts := services.NewReceiptService(cfg.Resend.FromName, cfg.Server.PublicURL)

	// Domain services
	authService := services.NewAuthService(staffRepo, cfg.Auth, log)
	catalogService := services.NewCatalogService(productRepo, locationRepo, templateRepo, images, log)
	bookingService := services.NewBookingService(bookingRepo, productRepo, locationRepo, orderRepo, log)
	checkoutService := services.NewCheckoutService(orderRepo, bookingRepo, productRepo, locationRepo,
		payments, email, receipts, cfg.Stripe.Currency, log)

	// Sessions and cart persistence
	cookieStore := middleware.NewCookieStore(cfg.Session.Secret, cfg.Session.MaxAge, cfg.IsProduction())
	checks := map[string]handlers.Pinger{"database": db}

	var cartStorage handlers.CartStorage
	switch cfg.Cart.Storage {
	case "redis":
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		cartStorage = handlers.SharedCartStorage(cart.NewRedisStorage(client, cfg.Cart.TTL))
		checks["redis"] = redisPinger{client: client}
	case "memory":
		cartStorage = handlers.SharedCartStorage(cart.NewMemoryStorage())
	default:
		cartStorage = handlers.SessionCartStorage(middleware.NewFilesystemStore(
			cfg.Cart.SessionDir, cfg.Session.Secret, cfg.Session.MaxAge, cfg.IsProduction()))
	}
	log.Info("Cart storage selected", zap.String("storage", cfg.Cart.Storage))

	loginLimiter := middleware.NewLoginRateLimiter(5, 15*time.Minute)
	defer loginLimiter.Stop()

	// Handlers
	cartHandler := handlers.NewCartHandler(cartStorage, catalogService, log)
	router := handlers.NewRouter(handlers.RouterConfig{
		Cart:     cartHandler,
		Wizards:  handlers.NewWizardHandler(cartHandler, catalogService, log),
		Catalog:  handlers.NewCatalogHandler(catalogService, log),
		Calendar: handlers.NewCalendarHandler(bookingService, log),
		Checkout: handlers.NewCheckoutHandler(cartHandler, checkoutService, payments, log),
		Orders:   handlers.NewOrderHandler(bookingService, receipts, log),
		Admin:    handlers.NewAdminHandler(authService, catalogService, log),
		Health:   handlers.NewHealthHandler(checks, log),

		Sessions:     middleware.NewSessionMiddleware(cookieStore, log),
		Auth:         middleware.NewAuthMiddleware(authService, log),
		LoginLimiter: loginLimiter,
		CORS:         middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins),
		Tracing:      telemetry.Middleware(cfg.Telemetry.ServiceName, "/health"),
		UploadsDir:   cfg.R2.LocalDir,
		Logger:       log,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("Server stopped")
	return nil
}
