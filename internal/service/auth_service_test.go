package service

import (
	"context"
	"testing"

	"github.com/spec-kit/kpi-service/internal/config"
	"github.com/spec-kit/kpi-service/internal/domain"
)

func newTestAuthService(t *testing.T) (*AuthService, *fakeUserRepo) {
	t.Helper()
	users := newFakeUserRepo()
	cfg := config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 15, BcryptCost: 4}
	return NewAuthService(cfg, users), users
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestAuthService(t)

	user, token, exp, err := svc.Register(context.Background(), "worker", "worker@example.com", "secret123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != domain.UserRoleUser {
		t.Errorf("self-registered role = %q, want user", user.Role)
	}
	if token == "" || exp.IsZero() {
		t.Fatal("register returned no token")
	}

	claims, err := svc.TokenManager().ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != domain.UserRoleUser {
		t.Fatalf("claims = %+v", claims)
	}

	if _, _, _, err := svc.Login(context.Background(), "worker@example.com", "secret123"); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestAuthService(t)
	if _, _, _, err := svc.Register(context.Background(), "worker", "worker@example.com", "secret123"); err != nil {
		t.Fatal(err)
	}
	_, _, _, err := svc.Register(context.Background(), "other", "worker@example.com", "secret123")
	assertCode(t, err, "VALIDATION_FAILED")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestAuthService(t)
	if _, _, _, err := svc.Register(context.Background(), "worker", "worker@example.com", "secret123"); err != nil {
		t.Fatal(err)
	}

	_, _, _, err := svc.Login(context.Background(), "worker@example.com", "wrong")
	assertCode(t, err, "UNAUTHORIZED")

	_, _, _, err = svc.Login(context.Background(), "nobody@example.com", "secret123")
	assertCode(t, err, "UNAUTHORIZED")
}
