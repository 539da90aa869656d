package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taskflow-dev/taskflow/internal/apperr"
	"github.com/taskflow-dev/taskflow/internal/auth"
	"github.com/taskflow-dev/taskflow/internal/repository"
	"github.com/taskflow-dev/taskflow/internal/testutil"
	"github.com/taskflow-dev/taskflow/internal/types"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	issuer, err := auth.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	return NewAuthService(repository.NewUserRepository(testutil.NewDB(t)), issuer)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "  Dana ", " Dana@Example.com ", "hunter22")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != types.RoleUser || user.Email != "dana@example.com" || user.Name != "Dana" {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.PasswordHash == "hunter22" {
		t.Fatalf("password stored in clear")
	}

	if _, err := svc.Register(ctx, "Other", "dana@example.com", "x"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.Register(ctx, "", "a@b.c", "x"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation, got %v", err)
	}

	token, got, err := svc.Login(ctx, "DANA@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" || got.ID != user.ID {
		t.Fatalf("unexpected login result %q %+v", token, got)
	}

	_, _, wrongPass := svc.Login(ctx, "dana@example.com", "nope")
	_, _, unknown := svc.Login(ctx, "ghost@example.com", "hunter22")
	if !errors.Is(wrongPass, apperr.ErrValidation) || !errors.Is(unknown, apperr.ErrValidation) {
		t.Fatalf("expected validation errors, got %v / %v", wrongPass, unknown)
	}
	if apperr.Message(wrongPass) != apperr.Message(unknown) {
		t.Fatalf("login errors must not reveal which part was wrong")
	}
}

func TestPromote(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Eve", "eve@example.com", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}

	user, err := svc.Promote(ctx, "EVE@example.com", types.RoleAdmin)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if user.Role != types.RoleAdmin {
		t.Fatalf("role = %q", user.Role)
	}

	if _, err := svc.Promote(ctx, "eve@example.com", "root"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
	if _, err := svc.Promote(ctx, "nobody@example.com", types.RoleManager); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
