package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"activity-storefront/internal/config"
	"activity-storefront/internal/models"
	"activity-storefront/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ErrInvalidCredentials is returned when an email and password do not match a staff account
var ErrInvalidCredentials = errors.New("invalid email or password")

// StaffClaims are carried in admin API tokens
type StaffClaims struct {
	StaffID string           `json:"staff_id"`
	Email   string           `json:"email"`
	Role    models.StaffRole `json:"role"`
	jwt.RegisteredClaims
}

// LoginRequest is the admin login payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is returned on successful login
type LoginResult struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Staff     *models.Staff `json:"staff"`
}

// AuthService authenticates staff and issues tokens for the admin API
type AuthService struct {
	staff  StaffRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(staff StaffRepository, cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthService{
		staff:  staff,
		secret: []byte(cfg.JWTSecret),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// Login checks the password and returns a signed token
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	staff, err := s.staff.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrStaffNotFound) {
			s.logger.Warn("Login for unknown staff email", zap.String("email", email))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := utils.VerifyPassword(req.Password, staff.PasswordHash)
	if err != nil {
		s.logger.Error("Stored password hash is unreadable", zap.String("staff_id", staff.ID), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if !ok {
		s.logger.Warn("Failed staff login", zap.String("staff_id", staff.ID))
		return nil, ErrInvalidCredentials
	}

	token, expires, err := s.IssueToken(staff)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Staff logged in", zap.String("staff_id", staff.ID), zap.String("role", string(staff.Role)))
	return &LoginResult{Token: token, ExpiresAt: expires, Staff: staff}, nil
}

// IssueToken signs an HS256 token for staff
func (s *AuthService) IssueToken(staff *models.Staff) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := StaffClaims{
		StaffID: staff.ID,
		Email:   staff.Email,
		Role:    staff.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   staff.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken validates a token and returns its claims
func (s *AuthService) ParseToken(tokenString string) (*StaffClaims, error) {
	claims := &StaffClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	return claims, nil
}
