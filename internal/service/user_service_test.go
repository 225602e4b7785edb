package service

import (
	"context"
	"testing"

	"github.com/spec-kit/kpi-service/internal/config"
	"github.com/spec-kit/kpi-service/internal/domain"
)

func newTestUserService(t *testing.T) (*UserService, *fakeUserRepo) {
	t.Helper()
	users := newFakeUserRepo(
		domain.User{ID: "user-1", Username: "worker", Email: "worker@example.com", Role: domain.UserRoleUser},
		domain.User{ID: "user-2", Username: "helper", Email: "helper@example.com", Role: domain.UserRoleUser},
	)
	return NewUserService(config.AuthConfig{BcryptCost: 4}, users), users
}

func TestUserManagementRequiresAdmin(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()

	if _, err := svc.List(ctx, userActor); err == nil {
		t.Error("List allowed for non-admin")
	}
	if _, err := svc.Create(ctx, userActor, UserCreateInput{}); err == nil {
		t.Error("Create allowed for non-admin")
	}
	if _, err := svc.Update(ctx, userActor, "user-1", UserUpdateInput{}); err == nil {
		t.Error("Update allowed for non-admin")
	}
	if err := svc.Delete(ctx, userActor, "user-1"); err == nil {
		t.Error("Delete allowed for non-admin")
	}
}

func TestUserCreateRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestUserService(t)
	_, err := svc.Create(context.Background(), adminActor, UserCreateInput{
		Username: "worker2",
		Email:    "worker@example.com",
		Password: "secret123",
		Role:     domain.UserRoleUser,
	})
	assertCode(t, err, "VALIDATION_FAILED")
}

func TestUserUpdateValidation(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input UserUpdateInput
	}{
		{"bad email", UserUpdateInput{Username: "worker", Email: "not-an-email", Role: domain.UserRoleUser}},
		{"bad username", UserUpdateInput{Username: "who?!", Email: "worker@example.com", Role: domain.UserRoleUser}},
		{"unknown role", UserUpdateInput{Username: "worker", Email: "worker@example.com", Role: "owner"}},
		{"duplicate username", UserUpdateInput{Username: "helper", Email: "worker@example.com", Role: domain.UserRoleUser}},
		{"duplicate email", UserUpdateInput{Username: "worker", Email: "helper@example.com", Role: domain.UserRoleUser}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Update(ctx, adminActor, "user-1", tc.input)
			assertCode(t, err, "VALIDATION_FAILED")
		})
	}
}

func TestUserUpdateAndDelete(t *testing.T) {
	svc, users := newTestUserService(t)
	ctx := context.Background()

	updated, err := svc.Update(ctx, adminActor, "user-1", UserUpdateInput{
		Username: "worker renamed",
		Email:    "renamed@example.com",
		Role:     domain.UserRoleAdmin,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Username != "worker renamed" || updated.Role != domain.UserRoleAdmin {
		t.Fatalf("updated = %+v", updated)
	}

	if err := svc.Delete(ctx, adminActor, "user-2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := users.GetByID(ctx, "user-2"); err == nil {
		t.Fatal("user-2 still present after delete")
	}

	err = svc.Delete(ctx, adminActor, "missing")
	assertCode(t, err, "NOT_FOUND")
}
