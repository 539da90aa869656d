package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskflow-dev/taskflow/internal/apperr"
	"github.com/taskflow-dev/taskflow/internal/auth"
	"github.com/taskflow-dev/taskflow/internal/models"
	"github.com/taskflow-dev/taskflow/internal/repository"
	"github.com/taskflow-dev/taskflow/internal/types"
)

// AuthService registers and authenticates users. tokens may be nil for callers
// that never log in, such as the CLI.
type AuthService struct {
	users  *repository.UserRepository
	tokens *auth.TokenIssuer
}

func NewAuthService(users *repository.UserRepository, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user with the default role.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, apperr.Validation("All fields are required.")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("Email already in use.")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("hash password: %w", err))
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         types.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks credentials and issues a token. Unknown email and wrong password
// produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return "", nil, apperr.Validation("All fields are required.")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		return "", nil, apperr.Validation("Invalid credentials.")
	}

	if s.tokens == nil {
		return "", nil, apperr.Internal(fmt.Errorf("auth service has no token issuer"))
	}
	token, err := s.tokens.GenerateJWT(user.ID, user.Role)
	if err != nil {
		return "", nil, apperr.Internal(fmt.Errorf("generate jwt: %w", err))
	}
	return token, user, nil
}

// Promote changes a user's role. Used by the CLI to bootstrap admins.
func (s *AuthService) Promote(ctx context.Context, email, role string) (*models.User, error) {
	if !types.ValidRole(role) {
		return nil, apperr.Validation("Role must be one of admin, manager, user.")
	}
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("User not found.")
	}
	if err := s.users.UpdateRole(ctx, user.ID, role); err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}
