package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-checkin/internal/auth"
	"ms-checkin/internal/database"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
)

var (
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidLogin is a single collapsed message so responses don't leak
	// whether the email or the password was wrong.
	ErrInvalidLogin = errors.New("invalid email or password")
	ErrInvalidEmail = errors.New("email is invalid")
	ErrNotFound     = errors.New("user not found")
)

type DBLayer interface {
	CreateUser(ctx context.Context, user models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

type Service struct {
	DB     DBLayer
	Tokens *auth.TokenManager
	Logger *logger.Logger
}

func NewService(db DBLayer, tokens *auth.TokenManager, log *logger.Logger) *Service {
	return &Service{DB: db, Tokens: tokens, Logger: log}
}

// Register creates an organizer account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.DB.CreateUser(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("accounts: create user: %w", err)
	}

	if s.Logger != nil {
		s.Logger.LogDatabase("INSERT", "users", fmt.Sprintf("user %s registered", user.ID))
	}
	return &user, nil
}

// Login verifies credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.DB.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidLogin
		}
		return "", fmt.Errorf("accounts: lookup by email: %w", err)
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		if s.Logger != nil {
			s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("user %s", user.ID))
		}
		return "", ErrInvalidLogin
	}

	return s.Tokens.Issue(user.ID)
}

// Me returns the authenticated user's profile.
func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.DB.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("accounts: load user %s: %w", userID, err)
	}
	return user, nil
}
