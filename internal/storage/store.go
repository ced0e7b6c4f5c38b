package storage

import (
	"context"

	"github.com/shopspring/decimal"
	"qc-ledger/internal/types"
)

// Store is the durable boundary of the ledger core. Implementations must
// offer atomic per-record read-modify-write and unique-key enforcement;
// conflicting mutations on the same account are serialized, mutations on
// different accounts proceed independently.
type Store interface {
	// Users. CreateUser persists the user together with its freshly seeded
	// account; the email is a unique key (ErrEmailTaken on collision).
	CreateUser(ctx context.Context, u User, acc Account) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)

	UpsertAdmin(ctx context.Context, a AdminUser) error
	GetAdminByUsername(ctx context.Context, username string) (AdminUser, error)

	// Accounts. GetAccount fails with ErrNotFound for unknown or deactivated
	// accounts. The Adjust* operations fail with ErrInsufficientFunds /
	// ErrInsufficientHoldings when the result would be negative, leaving the
	// record untouched; AdjustHolding removes the symbol when the quantity
	// reaches exactly zero.
	GetAccount(ctx context.Context, id string) (Account, error)
	AdjustFunding(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error)
	AdjustDemo(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error)
	AdjustHolding(ctx context.Context, id, symbol string, delta decimal.Decimal) (decimal.Decimal, error)
	AppendHistory(ctx context.Context, id string, rec TradeRecord) error
	ListHistory(ctx context.Context, id string) ([]TradeRecord, error)
	DeactivateAccount(ctx context.Context, id string) error

	// ExecuteTrade applies a demo-balance delta and a holding delta to the
	// same account as one atomic unit, appending the history record only
	// when both succeed.
	ExecuteTrade(ctx context.Context, id string, demoDelta decimal.Decimal, symbol string, qtyDelta decimal.Decimal, rec TradeRecord) (Account, error)

	// Ledger entries. TransitionEntry is the linearization point for entry
	// state: compare-and-set, succeeding only if the prior status was
	// pending (ErrAlreadyFinalized otherwise). CompleteEntry composes the
	// pending -> completed transition, the funding-balance adjustment, and
	// the history append into a single atomic unit: on
	// ErrInsufficientFunds the entry remains pending and no state changes.
	InsertEntry(ctx context.Context, e Entry) error
	GetEntry(ctx context.Context, id string) (Entry, error)
	ListEntriesByAccount(ctx context.Context, accountID string) ([]Entry, error)
	ListPendingEntries(ctx context.Context) ([]Entry, error)
	TransitionEntry(ctx context.Context, id string, target types.EntryStatus, rev Review) (Entry, error)
	CompleteEntry(ctx context.Context, id string, rev Review, fundingDelta decimal.Decimal, rec TradeRecord) (Entry, decimal.Decimal, error)

	// Notifications. MarkNotificationRead fails with ErrForbidden when the
	// notification belongs to a different account and is an idempotent
	// no-op when already read.
	InsertNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, accountID string) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id, accountID string) error

	// Price snapshots: append-only time series, latest snapshot per symbol
	// wins for reads.
	InsertPriceSnapshot(ctx context.Context, p PriceSnapshot) error
	LatestPrices(ctx context.Context) (map[string]PriceSnapshot, error)

	Close()
}
