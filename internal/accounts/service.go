package accounts

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"qc-ledger/internal/ident"
	"qc-ledger/internal/metrics"
	"qc-ledger/internal/notify"
	"qc-ledger/internal/storage"
	"qc-ledger/internal/types"
	"qc-ledger/internal/valuation"
)

var (
	ErrInvalidTrade = errors.New("invalid trade")
	ErrNoPrice      = errors.New("no price snapshot for symbol")
)

type Service struct {
	store    storage.Store
	notifier *notify.Service
	metrics  *metrics.Metrics
}

func NewService(store storage.Store, notifier *notify.Service, m *metrics.Metrics) *Service {
	return &Service{store: store, notifier: notifier, metrics: m}
}

// AccountForUser resolves the caller's account from the authenticated user
// id.
func (s *Service) AccountForUser(ctx context.Context, userID string) (storage.Account, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return storage.Account{}, err
	}
	return s.store.GetAccount(ctx, u.AccountID)
}

func (s *Service) Get(ctx context.Context, accountID string) (storage.Account, error) {
	return s.store.GetAccount(ctx, accountID)
}

type Summary struct {
	AccountID      string           `json:"account_id"`
	FundingBalance decimal.Decimal  `json:"funding_balance"`
	DemoBalance    decimal.Decimal  `json:"demo_balance"`
	Holdings       valuation.Result `json:"holdings"`
}

// Summary combines the account snapshot with a holdings valuation at the
// latest prices.
func (s *Service) Summary(ctx context.Context, accountID string) (Summary, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return Summary{}, err
	}
	prices, err := s.store.LatestPrices(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		AccountID:      acc.ID,
		FundingBalance: acc.FundingBalance,
		DemoBalance:    acc.DemoBalance,
		Holdings:       valuation.Valuate(acc.Holdings, prices),
	}, nil
}

func (s *Service) History(ctx context.Context, accountID string) ([]storage.TradeRecord, error) {
	return s.store.ListHistory(ctx, accountID)
}

// DemoTopUp credits the demo balance directly; demo funds never pass
// through admin review.
func (s *Service) DemoTopUp(ctx context.Context, accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.GreaterThan(decimal.Zero) {
		return decimal.Zero, ErrInvalidTrade
	}
	return s.store.AdjustDemo(ctx, accountID, amount)
}

type TradeResult struct {
	Entry   storage.Entry   `json:"entry"`
	Account storage.Account `json:"account"`
}

// Trade executes a buy or sell of a held asset against the demo balance at
// the latest snapshot price. Balance and holding move as one atomic unit;
// the completed ledger entry and the notification are appended afterwards.
func (s *Service) Trade(ctx context.Context, accountID string, side types.TradeSide, symbol string, qty decimal.Decimal) (TradeResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || !qty.GreaterThan(decimal.Zero) {
		return TradeResult{}, ErrInvalidTrade
	}
	if side != types.TradeSideBuy && side != types.TradeSideSell {
		return TradeResult{}, ErrInvalidTrade
	}
	prices, err := s.store.LatestPrices(ctx)
	if err != nil {
		return TradeResult{}, err
	}
	snap, ok := prices[symbol]
	if !ok || !snap.Price.GreaterThan(decimal.Zero) {
		return TradeResult{}, ErrNoPrice
	}
	cost := qty.Mul(snap.Price)

	demoDelta := cost.Neg()
	qtyDelta := qty
	if side == types.TradeSideSell {
		demoDelta = cost
		qtyDelta = qty.Neg()
	}

	now := time.Now().UTC()
	entryID := ident.New("txn")
	rec := storage.TradeRecord{
		ID:        ident.New("hst"),
		AccountID: accountID,
		Kind:      types.EntryKindTrade,
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Price:     snap.Price,
		Amount:    cost,
		Reference: entryID,
		CreatedAt: now,
	}
	acc, err := s.store.ExecuteTrade(ctx, accountID, demoDelta, symbol, qtyDelta, rec)
	if err != nil {
		return TradeResult{}, err
	}
	s.metrics.ObserveTrade(symbol, string(side))

	reviewedAt := now
	entry := storage.Entry{
		ID:         entryID,
		Ticket:     ident.Ticket("trd", entryID),
		AccountID:  accountID,
		Kind:       types.EntryKindTrade,
		Amount:     cost,
		Status:     types.EntryStatusCompleted,
		ReviewedBy: "system",
		ReviewedAt: &reviewedAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.InsertEntry(ctx, entry); err != nil {
		log.Printf("[accounts] failed to record trade entry %s: %v", entryID, err)
	}
	if s.notifier != nil {
		if _, err := s.notifier.Emit(ctx, accountID, types.NotificationTradeExecuted,
			"Trade executed",
			"Executed "+string(side)+" "+qty.String()+" "+symbol+" at "+snap.Price.String(),
			map[string]string{"entry_id": entryID, "symbol": symbol},
		); err != nil {
			log.Printf("[accounts] failed to emit trade notification: %v", err)
		}
	}
	return TradeResult{Entry: entry, Account: acc}, nil
}
