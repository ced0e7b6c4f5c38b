package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"qc-ledger/internal/notify"
	"qc-ledger/internal/storage"
	"qc-ledger/internal/storage/memory"
	"qc-ledger/internal/types"
)

func newFixture(t *testing.T, funding string) (*Service, *memory.Store, storage.Account) {
	t.Helper()
	s := memory.NewStore()
	now := time.Now().UTC()
	acc := storage.Account{
		ID:             "acc_test",
		UserID:         "usr_test",
		FundingBalance: decimal.RequireFromString(funding),
		DemoBalance:    decimal.Zero,
		Holdings:       map[string]decimal.Decimal{},
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	u := storage.User{ID: acc.UserID, Email: "test@example.com", AccountID: acc.ID, CreatedAt: now}
	if err := s.CreateUser(context.Background(), u, acc); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	svc := NewService(s, notify.NewService(s), nil, nil, "qc-ledger-test", []byte("admin-secret"))
	return svc, s, acc
}

func insertPending(t *testing.T, s *memory.Store, id, accountID string, kind types.EntryKind, amount, processingFee, networkFee string) storage.Entry {
	t.Helper()
	now := time.Now().UTC()
	e := storage.Entry{
		ID:            id,
		Ticket:        "QCT0000001AB",
		AccountID:     accountID,
		Kind:          kind,
		Amount:        decimal.RequireFromString(amount),
		Status:        types.EntryStatusPending,
		ProcessingFee: decimal.RequireFromString(processingFee),
		NetworkFee:    decimal.RequireFromString(networkFee),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.InsertEntry(context.Background(), e); err != nil {
		t.Fatalf("InsertEntry: %v", err)
	}
	return e
}

func TestApproveWithdrawalDebitsAmountExactly(t *testing.T) {
	svc, s, acc := newFixture(t, "1000")
	e := insertPending(t, s, "txn1", acc.ID, types.EntryKindWithdrawal, "200", "5", "2")
	ctx := context.Background()

	updated, err := svc.Approve(ctx, e.ID, "adm1", "looks good", "batch-77")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if updated.Status != types.EntryStatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}
	if updated.ReviewedBy != "adm1" || updated.ReviewedAt == nil {
		t.Fatalf("review metadata missing: %+v", updated)
	}
	if updated.SettlementRef != "batch-77" {
		t.Fatalf("settlement ref not recorded: %q", updated.SettlementRef)
	}

	got, _ := s.GetAccount(ctx, acc.ID)
	// Fees are informational: the debit is the amount, not amount+fees.
	if !got.FundingBalance.Equal(decimal.RequireFromString("800")) {
		t.Fatalf("expected 800 after approval, got %s", got.FundingBalance)
	}
	hist, _ := s.ListHistory(ctx, acc.ID)
	if len(hist) != 1 || hist[0].Reference != e.ID {
		t.Fatalf("history not appended: %+v", hist)
	}
	notifs, _ := s.ListNotifications(ctx, acc.ID)
	if len(notifs) != 1 || notifs[0].Category != types.NotificationTransactionCompleted {
		t.Fatalf("completion notification missing: %+v", notifs)
	}
}

func TestApproveDepositCreditsOnce(t *testing.T) {
	svc, s, acc := newFixture(t, "0")
	e := insertPending(t, s, "txn1", acc.ID, types.EntryKindDeposit, "5000", "0", "0")
	ctx := context.Background()

	if _, err := svc.Approve(ctx, e.ID, "adm1", "", ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := svc.Approve(ctx, e.ID, "adm2", "", ""); !errors.Is(err, storage.ErrAlreadyFinalized) {
		t.Fatalf("second approval must fail, got %v", err)
	}

	got, _ := s.GetAccount(ctx, acc.ID)
	if !got.FundingBalance.Equal(decimal.RequireFromString("5000")) {
		t.Fatalf("expected 5000 credited once, got %s", got.FundingBalance)
	}
	hist, _ := s.ListHistory(ctx, acc.ID)
	if len(hist) != 1 {
		t.Fatalf("expected one history record, got %d", len(hist))
	}
	notifs, _ := s.ListNotifications(ctx, acc.ID)
	if len(notifs) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifs))
	}
}

func TestApproveWithdrawalInsufficientFunds(t *testing.T) {
	svc, s, acc := newFixture(t, "100")
	e := insertPending(t, s, "txn1", acc.ID, types.EntryKindWithdrawal, "200", "0", "0")
	ctx := context.Background()

	if _, err := svc.Approve(ctx, e.ID, "adm1", "", ""); !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	got, _ := s.GetEntry(ctx, e.ID)
	if got.Status != types.EntryStatusPending {
		t.Fatalf("entry must stay pending, got %s", got.Status)
	}
	accGot, _ := s.GetAccount(ctx, acc.ID)
	if !accGot.FundingBalance.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("balance changed: %s", accGot.FundingBalance)
	}
	notifs, _ := s.ListNotifications(ctx, acc.ID)
	if len(notifs) != 0 {
		t.Fatalf("no notification on failed approval, got %+v", notifs)
	}

	// Still reviewable once the balance allows it.
	if _, err := s.AdjustFunding(ctx, acc.ID, decimal.RequireFromString("150")); err != nil {
		t.Fatalf("AdjustFunding: %v", err)
	}
	if _, err := svc.Approve(ctx, e.ID, "adm1", "", ""); err != nil {
		t.Fatalf("retry after top-up: %v", err)
	}
}

func TestRejectLeavesBalanceUntouched(t *testing.T) {
	svc, s, acc := newFixture(t, "1000")
	e := insertPending(t, s, "txn1", acc.ID, types.EntryKindWithdrawal, "200", "0", "0")
	ctx := context.Background()

	updated, err := svc.Reject(ctx, e.ID, "adm1", "address mismatch")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if updated.Status != types.EntryStatusRejected || updated.Annotation != "address mismatch" {
		t.Fatalf("unexpected entry: %+v", updated)
	}

	got, _ := s.GetAccount(ctx, acc.ID)
	if !got.FundingBalance.Equal(decimal.RequireFromString("1000")) {
		t.Fatalf("rejection must not move funds: %s", got.FundingBalance)
	}
	hist, _ := s.ListHistory(ctx, acc.ID)
	if len(hist) != 0 {
		t.Fatalf("rejection must not append history: %+v", hist)
	}
	notifs, _ := s.ListNotifications(ctx, acc.ID)
	if len(notifs) != 1 || notifs[0].Category != types.NotificationTransactionRejected {
		t.Fatalf("rejection notification missing: %+v", notifs)
	}

	if _, err := svc.Approve(ctx, e.ID, "adm1", "", ""); !errors.Is(err, storage.ErrAlreadyFinalized) {
		t.Fatalf("approve after reject must fail, got %v", err)
	}
}

func TestAdminLoginAndToken(t *testing.T) {
	svc, s, _ := newFixture(t, "0")
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if err := s.UpsertAdmin(ctx, storage.AdminUser{ID: "adm1", Username: "ops", PasswordHash: string(hash), CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("UpsertAdmin: %v", err)
	}

	if _, err := svc.Login(ctx, "ops", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	token, err := svc.Login(ctx, "ops", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	adminID, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if adminID != "adm1" {
		t.Fatalf("expected adm1, got %s", adminID)
	}

	// A token signed with a different secret never validates here.
	other := NewService(s, nil, nil, nil, "qc-ledger-test", []byte("user-secret"))
	otherToken, err := other.signToken("usr_test")
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	if _, err := svc.ParseToken(otherToken); err == nil {
		t.Fatal("foreign token must not validate")
	}
}

func TestDeactivateAccount(t *testing.T) {
	svc, s, acc := newFixture(t, "50")
	ctx := context.Background()

	if err := svc.DeactivateAccount(ctx, acc.ID); err != nil {
		t.Fatalf("DeactivateAccount: %v", err)
	}
	if _, err := s.AdjustFunding(ctx, acc.ID, decimal.RequireFromString("10")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("frozen account must reject adjustments, got %v", err)
	}
}
