package services

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/requestdata"
)

func newAuth(t *testing.T) AuthService {
	t.Helper()
	deps := newTestDeps(t)
	return NewAuthService(deps.db, logger.NewNop(), deps.userRepo, "test-secret", time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newAuth(t)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, "Learner@Example.com", "correct-horse", "Ada", "Lovelace")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "learner@example.com" {
		t.Errorf("Email = %q, want lowercased", user.Email)
	}
	if token == "" {
		t.Error("expected a token on register")
	}
	if user.PasswordHash == "correct-horse" {
		t.Error("password stored in the clear")
	}

	if _, _, err := svc.Register(ctx, "learner@example.com", "another-pass", "", ""); err == nil {
		t.Error("expected duplicate email to fail")
	}

	if _, _, err := svc.Login(ctx, "learner@example.com", "wrong"); err == nil {
		t.Error("expected wrong password to fail")
	}
	loggedIn, token, err := svc.Login(ctx, "learner@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Errorf("login returned user %v, want %v", loggedIn.ID, user.ID)
	}

	authedCtx, err := svc.SetContextFromToken(ctx, token)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := requestdata.GetRequestData(authedCtx)
	if rd == nil {
		t.Fatal("no request data attached")
	}
	if rd.UserID != user.ID {
		t.Errorf("token subject = %v, want %v", rd.UserID, user.ID)
	}
	if rd.IsAdmin {
		t.Error("fresh user must not be admin")
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newAuth(t)

	if _, _, err := svc.Register(context.Background(), "short@example.com", "seven77", "", ""); err == nil {
		t.Error("expected short password to fail")
	}
}

func TestSetContextFromTokenRejectsGarbage(t *testing.T) {
	svc := newAuth(t)

	if _, err := svc.SetContextFromToken(context.Background(), "not-a-jwt"); err == nil {
		t.Error("expected malformed token to fail")
	}
}
