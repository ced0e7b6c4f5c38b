package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"qc-ledger/internal/storage"
	"qc-ledger/internal/storage/memory"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	s := memory.NewStore()
	svc := NewService(s, "qc-ledger-test", []byte("test-secret"), time.Hour, decimal.RequireFromString("10000"))
	return svc, s
}

func TestRegisterCreatesUserAndAccount(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "Trader@Example.com", "hunter2")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "trader@example.com" {
		t.Fatalf("email not normalized: %s", u.Email)
	}
	acc, err := s.GetAccount(ctx, u.AccountID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !acc.FundingBalance.IsZero() {
		t.Fatalf("funding must start at zero, got %s", acc.FundingBalance)
	}
	if !acc.DemoBalance.Equal(decimal.RequireFromString("10000")) {
		t.Fatalf("demo allowance not applied: %s", acc.DemoBalance)
	}

	if _, err := svc.Register(ctx, "trader@example.com", "other"); !errors.Is(err, storage.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLoginAndTokenRoundTrip(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "trader@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Login(ctx, "trader@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email must look identical, got %v", err)
	}

	token, err := svc.Login(ctx, "trader@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	userID, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if userID != u.ID {
		t.Fatalf("expected %s, got %s", u.ID, userID)
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	svc, s := newService(t)
	other := NewService(s, "qc-ledger-test", []byte("different-secret"), time.Hour, decimal.Zero)

	token, err := other.signToken("usr_x")
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	if _, err := svc.ParseToken(token); err == nil {
		t.Fatal("token signed with another secret must not validate")
	}
}
