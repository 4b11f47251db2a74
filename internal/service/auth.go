package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flipwise/flipwise/internal/apperr"
	"github.com/flipwise/flipwise/internal/model"
	"github.com/flipwise/flipwise/internal/repository"
	"github.com/flipwise/flipwise/internal/validation"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
)

const invalidCredentialsMessage = "Invalid email or password"

// dummyHash is compared against when the email is unknown so a failed
// login costs one bcrypt comparison whether or not the account exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("flipwise-timing-equalizer"), bcrypt.DefaultCost)

type AuthService struct {
	userRepository repository.UserRepository
	emailService   *EmailService
	now            func() time.Time
}

func NewAuthService(userRepository repository.UserRepository, emailService *EmailService) *AuthService {
	return &AuthService{
		userRepository: userRepository,
		emailService:   emailService,
		now:            time.Now,
	}
}

// NormalizeEmail trims and case-folds an address so lookups and the unique
// index treat differently cased spellings as one identity. A Caser holds
// state, so one is built per call.
func (s *AuthService) NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// Register creates an account and returns its id. A taken email is a
// conflict reported by the store's unique index.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (string, error) {
	name = strings.TrimSpace(name)
	email = s.NormalizeEmail(email)

	if name == "" || email == "" || password == "" {
		return "", apperr.Validation("name, email and password are required")
	}
	err := validation.ValidateName(name)
	if err != nil {
		return "", apperr.Validation(err.Error())
	}
	err = validation.ValidateEmail(email)
	if err != nil {
		return "", apperr.Validation(err.Error())
	}
	err = validation.ValidatePassword(password)
	if err != nil {
		return "", apperr.Validation(err.Error())
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("failed to hash password: %w", err))
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		IsPremium:    false,
		CreatedAt:    s.now().UTC(),
	}

	err = s.userRepository.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return "", apperr.Conflict("Email already registered")
		}
		return "", apperr.Internal(fmt.Errorf("failed to create user: %w", err))
	}

	slog.Info("user registered", "user_id", user.ID)

	if s.emailService != nil {
		err = s.emailService.SendWelcomeEmail(ctx, user.Email, user.Name)
		if err != nil {
			slog.Warn("failed to send welcome email", "user_id", user.ID, "error", err)
		}
	}

	return user.ID, nil
}

// Verify checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Verify(ctx context.Context, email, password string) (*model.User, error) {
	email = s.NormalizeEmail(email)

	user, err := s.userRepository.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_ = s.ComparePassword(password, string(dummyHash))
			return nil, apperr.Auth(invalidCredentialsMessage)
		}
		return nil, apperr.Internal(fmt.Errorf("failed to get user: %w", err))
	}

	err = s.ComparePassword(password, user.PasswordHash)
	if err != nil {
		return nil, apperr.Auth(invalidCredentialsMessage)
	}

	user.PasswordHash = ""
	return user, nil
}

// User returns the profile for id without its password hash.
func (s *AuthService) User(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepository.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal(fmt.Errorf("failed to get user: %w", err))
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *AuthService) ComparePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
