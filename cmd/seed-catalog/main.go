package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"activity-storefront/internal/config"
	"activity-storefront/internal/database"
	"activity-storefront/internal/logger"
	"activity-storefront/internal/models"
	"activity-storefront/internal/repositories"

	"go.uber.org/zap"
)

func main() {
	var (
		file   = flag.String("file", "cmd/seed-catalog/catalog.example.yaml", "YAML catalog to load")
		dryRun = flag.Bool("dry-run", false, "Validate the file without writing to the database")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.Must(cfg.Server.Env)
	defer func() { _ = log.Sync() }()

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal("Failed to open seed file", zap.Error(err))
	}
	cat, err := parseCatalog(f)
	_ = f.Close()
	if err != nil {
		log.Fatal("Invalid seed file", zap.String("file", *file), zap.Error(err))
	}

	log.Info("Seed file parsed",
		zap.Int("locations", len(cat.Locations)),
		zap.Int("products", len(cat.Products)))
	if *dryRun {
		return
	}

	ctx := context.Background()
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
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	s := &seeder{
		locations: repositories.NewLocationRepository(db.DB),
		products:  repositories.NewProductRepository(db.DB),
		templates: repositories.NewTemplateRepository(db.DB),
		logger:    log,
	}
	if err := s.seed(ctx, cat); err != nil {
		log.Fatal("Seeding failed", zap.Error(err))
	}
}

type seeder struct {
	locations *repositories.LocationRepository
	products  *repositories.ProductRepository
	templates *repositories.TemplateRepository
	logger    *zap.Logger
}

// seed inserts whatever is missing. Existing locations and products are
// matched by name and left untouched.
func (s *seeder) seed(ctx context.Context, cat *catalog) error {
	locationIDs := make(map[string]string, len(cat.Locations))
	for _, l := range cat.Locations {
		existing, err := s.locations.FindByName(ctx, l.Name)
		switch {
		case err == nil:
			locationIDs[l.Name] = existing.ID
			s.logger.Info("Location exists, skipping", zap.String("name", l.Name))
		case errors.Is(err, models.ErrLocationNotFound):
			created, err := s.locations.Create(ctx, l)
			if err != nil {
				return fmt.Errorf("create location %q: %w", l.Name, err)
			}
			locationIDs[l.Name] = created.ID
			s.logger.Info("Location created", zap.String("name", l.Name), zap.String("id", created.ID))
		default:
			return err
		}
	}

	existing, err := s.products.List(ctx, repositories.ProductFilter{})
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	byName := make(map[string]bool, len(existing))
	for _, p := range existing {
		byName[p.Name] = true
	}

	for _, p := range cat.Products {
		if byName[p.Name] {
			s.logger.Info("Product exists, skipping", zap.String("name", p.Name))
			continue
		}
		created, err := s.products.Create(ctx, p)
		if err != nil {
			return fmt.Errorf("create product %q: %w", p.Name, err)
		}
		s.logger.Info("Product created",
			zap.String("name", created.Name),
			zap.String("id", created.ID),
			zap.String("type", string(created.Type)))

		for _, pending := range cat.Templates[p.Name] {
			locationID, ok := locationIDs[pending.LocationName]
			if !ok {
				return fmt.Errorf("product %q: template references unknown location %q", p.Name, pending.LocationName)
			}
			tmpl := pending.Template
			tmpl.ProductID = created.ID
			tmpl.LocationID = locationID
			if _, err := s.templates.Create(ctx, &tmpl); err != nil {
				return fmt.Errorf("create template for %q: %w", p.Name, err)
			}
		}
	}
	return nil
}
