package service

import (
	"context"
	"errors"
	"regexp"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/kpi-service/internal/auth"
	"github.com/spec-kit/kpi-service/internal/config"
	"github.com/spec-kit/kpi-service/internal/domain"
	"github.com/spec-kit/kpi-service/internal/repository"
	apperrors "github.com/spec-kit/kpi-service/pkg/util"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	// Usernames allow latin letters, digits, Thai characters and spaces.
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9ก-๙\s]+$`)
)

// UserService implements admin-facing account management.
type UserService struct {
	users      repository.UserRepository
	bcryptCost int
}

// NewUserService builds the service.
func NewUserService(cfg config.AuthConfig, users repository.UserRepository) *UserService {
	return &UserService{users: users, bcryptCost: cfg.BcryptCost}
}

// UserCreateInput describes the admin create-user payload.
type UserCreateInput struct {
	Username string
	Email    string
	Password string
	Role     domain.UserRole
}

// UserUpdateInput describes the admin update-user payload. All fields are
// required, matching the management form.
type UserUpdateInput struct {
	Username string
	Email    string
	Role     domain.UserRole
}

// List returns all accounts.
func (s *UserService) List(ctx context.Context, actor domain.AuthContext) ([]domain.User, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	return s.users.List(ctx)
}

// Create adds an account with an explicit role.
func (s *UserService) Create(ctx context.Context, actor domain.AuthContext, input UserCreateInput) (*domain.User, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if input.Username == "" || input.Email == "" || input.Password == "" {
		return nil, apperrors.NewValidationError("username, email, password required", nil)
	}
	if !domain.ValidRole(input.Role) {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": input.Role})
	}
	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.NewValidationError("user already exists", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Update edits username, email and role with format and uniqueness checks.
func (s *UserService) Update(ctx context.Context, actor domain.AuthContext, id string, input UserUpdateInput) (*domain.User, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if input.Username == "" || input.Email == "" || input.Role == "" {
		return nil, apperrors.NewValidationError("missing required fields", nil)
	}
	if !emailPattern.MatchString(input.Email) {
		return nil, apperrors.NewValidationError("invalid email format", nil)
	}
	if !usernamePattern.MatchString(input.Username) {
		return nil, apperrors.NewValidationError("invalid username format", nil)
	}
	if !domain.ValidRole(input.Role) {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": input.Role})
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, err
	}

	if existing, err := s.users.GetByUsername(ctx, input.Username); err == nil && existing.ID != id {
		return nil, apperrors.NewValidationError("duplicate username", nil)
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if existing, err := s.users.GetByEmail(ctx, input.Email); err == nil && existing.ID != id {
		return nil, apperrors.NewValidationError("duplicate email", nil)
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	user.Username = input.Username
	user.Email = input.Email
	user.Role = input.Role
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes an account.
func (s *UserService) Delete(ctx context.Context, actor domain.AuthContext, id string) error {
	if !actor.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return err
	}
	return nil
}
