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
	"activity-storefront/internal/utils"

	"go.uber.org/zap"
)

func main() {
	var (
		email    = flag.String("email", "", "Staff email address (required)")
		name     = flag.String("name", "Administrator", "Display name")
		role     = flag.String("role", string(models.StaffAdmin), "Role: admin or staff")
		password = flag.String("password", "", "Password; a random one is generated when empty")
	)
	flag.Parse()

	if *email == "" {
		flag.Usage()
		os.Exit(2)
	}
	staffRole := models.StaffRole(*role)
	if staffRole != models.StaffAdmin && staffRole != models.StaffUser {
		fmt.Fprintf(os.Stderr, "invalid role %q\n", *role)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.Must(cfg.Server.Env)
	defer func() { _ = log.Sync() }()

	generated := false
	if *password == "" {
		token, err := utils.GenerateSecureToken(12)
		if err != nil {
			log.Fatal("Failed to generate password", zap.Error(err))
		}
		*password = token + "7"
		generated = true
	} else if err := utils.CheckPasswordStrength(*password); err != nil {
		log.Fatal("Password rejected", zap.Error(err))
	}

	hash, err := utils.HashPassword(*password)
	if err != nil {
		log.Fatal("Failed to hash password", zap.Error(err))
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

	staffRepo := repositories.NewStaffRepository(db.DB)

	existing, err := staffRepo.GetByEmail(ctx, *email)
	switch {
	case err == nil:
		if err := staffRepo.UpdatePassword(ctx, existing.ID, hash); err != nil {
			log.Fatal("Failed to update password", zap.Error(err))
		}
		fmt.Printf("Password updated for %s (%s)\n", existing.Email, existing.Role)
	case errors.Is(err, models.ErrStaffNotFound):
		created, err := staffRepo.Create(ctx, &models.Staff{
			Email:        *email,
			Name:         *name,
			PasswordHash: hash,
			Role:         staffRole,
		})
		if err != nil {
			log.Fatal("Failed to create staff user", zap.Error(err))
		}
		fmt.Printf("Staff user created: %s (%s) id=%s\n", created.Email, created.Role, created.ID)
	default:
		log.Fatal("Failed to look up staff user", zap.Error(err))
	}

	if generated {
		fmt.Printf("Generated password: %s\n", *password)
	}
}
