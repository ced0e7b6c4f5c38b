package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"qc-ledger/internal/storage"
	"qc-ledger/internal/storage/memory"
	"qc-ledger/internal/types"
)

func newStoreWithAccount(t *testing.T) (*memory.Store, storage.Account) {
	t.Helper()
	s := memory.NewStore()
	now := time.Now().UTC()
	acc := storage.Account{
		ID:          "acc_test",
		UserID:      "usr_test",
		DemoBalance: decimal.RequireFromString("10000"),
		Holdings:    map[string]decimal.Decimal{},
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	u := storage.User{ID: acc.UserID, Email: "test@example.com", AccountID: acc.ID, CreatedAt: now}
	if err := s.CreateUser(context.Background(), u, acc); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return s, acc
}

func TestCreateDeposit(t *testing.T) {
	s, acc := newStoreWithAccount(t)
	svc := NewService(s, nil)

	entry, err := svc.Create(context.Background(), CreateParams{
		AccountID: acc.ID,
		Kind:      types.EntryKindDeposit,
		Amount:    decimal.RequireFromString("150.25"),
		Network:   "TRC20",
		Address:   "TXabc",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if entry.Status != types.EntryStatusPending {
		t.Fatalf("new entry must be pending, got %s", entry.Status)
	}
	if entry.ID == "" || entry.Ticket == "" {
		t.Fatalf("missing identifiers: %+v", entry)
	}
	got, err := svc.Get(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Amount.Equal(entry.Amount) {
		t.Fatalf("amount mismatch: %s vs %s", got.Amount, entry.Amount)
	}
}

func TestCreateRejectsBadAmounts(t *testing.T) {
	s, acc := newStoreWithAccount(t)
	svc := NewService(s, nil)
	ctx := context.Background()

	cases := []CreateParams{
		{AccountID: acc.ID, Kind: types.EntryKindDeposit, Amount: decimal.RequireFromString("-5")},
		{AccountID: acc.ID, Kind: types.EntryKindDeposit, Amount: decimal.Zero},
		{AccountID: acc.ID, Kind: types.EntryKindWithdrawal, Amount: decimal.RequireFromString("10"), ProcessingFee: decimal.RequireFromString("-1")},
		{AccountID: acc.ID, Kind: "bonus", Amount: decimal.RequireFromString("10")},
		// fees exceed amount
		{AccountID: acc.ID, Kind: types.EntryKindWithdrawal, Amount: decimal.RequireFromString("10"), ProcessingFee: decimal.RequireFromString("8"), NetworkFee: decimal.RequireFromString("3")},
	}
	for i, p := range cases {
		if _, err := svc.Create(ctx, p); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("case %d: expected ErrInvalidAmount, got %v", i, err)
		}
	}

	entries, _ := svc.ListForAccount(ctx, acc.ID)
	if len(entries) != 0 {
		t.Fatalf("invalid requests must not persist entries: %+v", entries)
	}
}

func TestWithdrawalFeesAreInformational(t *testing.T) {
	s, acc := newStoreWithAccount(t)
	svc := NewService(s, nil)

	entry, err := svc.Create(context.Background(), CreateParams{
		AccountID:     acc.ID,
		Kind:          types.EntryKindWithdrawal,
		Amount:        decimal.RequireFromString("200"),
		ProcessingFee: decimal.RequireFromString("5"),
		NetworkFee:    decimal.RequireFromString("2"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// The requested amount stays 200; fees ride along as metadata.
	if !entry.Amount.Equal(decimal.RequireFromString("200")) {
		t.Fatalf("amount mutated by fees: %s", entry.Amount)
	}
	if !entry.ProcessingFee.Equal(decimal.RequireFromString("5")) || !entry.NetworkFee.Equal(decimal.RequireFromString("2")) {
		t.Fatalf("fees not recorded: %+v", entry)
	}
}

func TestTransitionRequiresTerminalStatus(t *testing.T) {
	s, acc := newStoreWithAccount(t)
	svc := NewService(s, nil)
	ctx := context.Background()

	entry, err := svc.Create(ctx, CreateParams{AccountID: acc.ID, Kind: types.EntryKindDeposit, Amount: decimal.RequireFromString("10")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Transition(ctx, entry.ID, types.EntryStatusPending, storage.Review{AdminID: "adm1"}); err == nil {
		t.Fatal("pending is not a terminal status")
	}
	if _, err := svc.Transition(ctx, entry.ID, types.EntryStatusRejected, storage.Review{AdminID: "adm1"}); err != nil {
		t.Fatalf("Transition to rejected: %v", err)
	}
}

func TestListPendingExcludesFinalized(t *testing.T) {
	s, acc := newStoreWithAccount(t)
	svc := NewService(s, nil)
	ctx := context.Background()

	first, _ := svc.Create(ctx, CreateParams{AccountID: acc.ID, Kind: types.EntryKindDeposit, Amount: decimal.RequireFromString("10")})
	second, _ := svc.Create(ctx, CreateParams{AccountID: acc.ID, Kind: types.EntryKindDeposit, Amount: decimal.RequireFromString("20")})
	if _, err := svc.Transition(ctx, first.ID, types.EntryStatusRejected, storage.Review{AdminID: "adm1"}); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	pending, err := svc.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("unexpected pending set: %+v", pending)
	}
}
