package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"qc-ledger/internal/notify"
	"qc-ledger/internal/storage"
	"qc-ledger/internal/storage/memory"
	"qc-ledger/internal/types"
)

func newFixture(t *testing.T) (*Service, *memory.Store, storage.Account) {
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
	return NewService(s, notify.NewService(s), nil), s, acc
}

func setPrice(t *testing.T, s *memory.Store, symbol, price string) {
	t.Helper()
	err := s.InsertPriceSnapshot(context.Background(), storage.PriceSnapshot{
		Symbol:    symbol,
		Price:     decimal.RequireFromString(price),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("InsertPriceSnapshot: %v", err)
	}
}

func TestTradeBuyThenSell(t *testing.T) {
	svc, s, acc := newFixture(t)
	setPrice(t, s, "ETH", "2500")
	ctx := context.Background()

	res, err := svc.Trade(ctx, acc.ID, types.TradeSideBuy, "eth", decimal.RequireFromString("2"))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !res.Account.DemoBalance.Equal(decimal.RequireFromString("5000")) {
		t.Fatalf("expected demo 5000 after buy, got %s", res.Account.DemoBalance)
	}
	if !res.Account.Holdings["ETH"].Equal(decimal.RequireFromString("2")) {
		t.Fatalf("expected 2 ETH, got %+v", res.Account.Holdings)
	}
	if res.Entry.Status != types.EntryStatusCompleted || res.Entry.Kind != types.EntryKindTrade {
		t.Fatalf("trade entry must be recorded completed: %+v", res.Entry)
	}

	res, err = svc.Trade(ctx, acc.ID, types.TradeSideSell, "ETH", decimal.RequireFromString("2"))
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if !res.Account.DemoBalance.Equal(decimal.RequireFromString("10000")) {
		t.Fatalf("expected demo restored, got %s", res.Account.DemoBalance)
	}
	if _, held := res.Account.Holdings["ETH"]; held {
		t.Fatalf("sold-out position must disappear: %+v", res.Account.Holdings)
	}

	hist, _ := s.ListHistory(ctx, acc.ID)
	if len(hist) != 2 {
		t.Fatalf("expected two history records, got %d", len(hist))
	}
	notifs, _ := s.ListNotifications(ctx, acc.ID)
	if len(notifs) != 2 || notifs[0].Category != types.NotificationTradeExecuted {
		t.Fatalf("trade notifications missing: %+v", notifs)
	}
}

func TestTradeRejectsUnpricedSymbol(t *testing.T) {
	svc, _, acc := newFixture(t)
	_, err := svc.Trade(context.Background(), acc.ID, types.TradeSideBuy, "BTC", decimal.RequireFromString("1"))
	if !errors.Is(err, ErrNoPrice) {
		t.Fatalf("expected ErrNoPrice, got %v", err)
	}
}

func TestTradeValidation(t *testing.T) {
	svc, s, acc := newFixture(t)
	setPrice(t, s, "ETH", "2500")
	ctx := context.Background()

	if _, err := svc.Trade(ctx, acc.ID, types.TradeSideBuy, "", decimal.RequireFromString("1")); !errors.Is(err, ErrInvalidTrade) {
		t.Fatalf("empty symbol: expected ErrInvalidTrade, got %v", err)
	}
	if _, err := svc.Trade(ctx, acc.ID, types.TradeSideBuy, "ETH", decimal.Zero); !errors.Is(err, ErrInvalidTrade) {
		t.Fatalf("zero quantity: expected ErrInvalidTrade, got %v", err)
	}
	if _, err := svc.Trade(ctx, acc.ID, "short", "ETH", decimal.RequireFromString("1")); !errors.Is(err, ErrInvalidTrade) {
		t.Fatalf("bad side: expected ErrInvalidTrade, got %v", err)
	}
}

func TestTradeInsufficientDemoBalance(t *testing.T) {
	svc, s, acc := newFixture(t)
	setPrice(t, s, "BTC", "65000")
	ctx := context.Background()

	if _, err := svc.Trade(ctx, acc.ID, types.TradeSideBuy, "BTC", decimal.RequireFromString("1")); !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	got, _ := s.GetAccount(ctx, acc.ID)
	if !got.DemoBalance.Equal(decimal.RequireFromString("10000")) {
		t.Fatalf("failed trade moved funds: %s", got.DemoBalance)
	}
	hist, _ := s.ListHistory(ctx, acc.ID)
	if len(hist) != 0 {
		t.Fatalf("failed trade recorded history: %+v", hist)
	}
}

func TestSummaryValuesHoldings(t *testing.T) {
	svc, s, acc := newFixture(t)
	setPrice(t, s, "ETH", "2000")
	ctx := context.Background()

	if _, err := svc.Trade(ctx, acc.ID, types.TradeSideBuy, "ETH", decimal.RequireFromString("3")); err != nil {
		t.Fatalf("buy: %v", err)
	}
	// Unpriced position shows up in the breakdown with zero contribution.
	if _, err := s.AdjustHolding(ctx, acc.ID, "XRP", decimal.RequireFromString("100")); err != nil {
		t.Fatalf("AdjustHolding: %v", err)
	}

	sum, err := svc.Summary(ctx, acc.ID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !sum.DemoBalance.Equal(decimal.RequireFromString("4000")) {
		t.Fatalf("expected demo 4000, got %s", sum.DemoBalance)
	}
	if !sum.Holdings.Total.Equal(decimal.RequireFromString("6000")) {
		t.Fatalf("expected holdings total 6000, got %s", sum.Holdings.Total)
	}
	if len(sum.Holdings.Breakdown) != 2 {
		t.Fatalf("expected two breakdown lines, got %+v", sum.Holdings.Breakdown)
	}
}

func TestDemoTopUp(t *testing.T) {
	svc, _, acc := newFixture(t)
	ctx := context.Background()

	if _, err := svc.DemoTopUp(ctx, acc.ID, decimal.Zero); !errors.Is(err, ErrInvalidTrade) {
		t.Fatalf("zero top-up: expected ErrInvalidTrade, got %v", err)
	}
	bal, err := svc.DemoTopUp(ctx, acc.ID, decimal.RequireFromString("500"))
	if err != nil {
		t.Fatalf("DemoTopUp: %v", err)
	}
	if !bal.Equal(decimal.RequireFromString("10500")) {
		t.Fatalf("expected 10500, got %s", bal)
	}
}

func TestAccountForUser(t *testing.T) {
	svc, _, acc := newFixture(t)
	got, err := svc.AccountForUser(context.Background(), "usr_test")
	if err != nil {
		t.Fatalf("AccountForUser: %v", err)
	}
	if got.ID != acc.ID {
		t.Fatalf("expected %s, got %s", acc.ID, got.ID)
	}
	if _, err := svc.AccountForUser(context.Background(), "usr_missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
