package storage

import (
	"time"

	"github.com/shopspring/decimal"
	"qc-ledger/internal/types"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AccountID    string    `json:"account_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type AdminUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account is the per-user balance record. FundingBalance and DemoBalance are
// always >= 0; Holdings never contains a zero-quantity symbol.
type Account struct {
	ID             string                     `json:"id"`
	UserID         string                     `json:"user_id"`
	FundingBalance decimal.Decimal            `json:"funding_balance"`
	DemoBalance    decimal.Decimal            `json:"demo_balance"`
	Holdings       map[string]decimal.Decimal `json:"holdings"`
	Active         bool                       `json:"active"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

// TradeRecord is one row of an account's append-only history.
type TradeRecord struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Kind      types.EntryKind `json:"kind"`
	Symbol    string          `json:"symbol,omitempty"`
	Side      types.TradeSide `json:"side,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Entry is a deposit, withdrawal, or trade tracked through the
// pending -> completed|rejected lifecycle. Amount and fees are fixed at
// creation; only status, annotation, settlement reference, and review
// metadata change, exactly once, on the single transition out of pending.
type Entry struct {
	ID            string            `json:"id"`
	Ticket        string            `json:"ticket"`
	AccountID     string            `json:"account_id"`
	Kind          types.EntryKind   `json:"kind"`
	Amount        decimal.Decimal   `json:"amount"`
	Status        types.EntryStatus `json:"status"`
	Network       string            `json:"network,omitempty"`
	Address       string            `json:"address,omitempty"`
	ProcessingFee decimal.Decimal   `json:"processing_fee"`
	NetworkFee    decimal.Decimal   `json:"network_fee"`
	SettlementRef string            `json:"settlement_ref,omitempty"`
	Annotation    string            `json:"annotation,omitempty"`
	ReviewedBy    string            `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time        `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Review carries the identity and annotations of the reviewer finalizing an
// entry.
type Review struct {
	AdminID       string
	Annotation    string
	SettlementRef string
	At            time.Time
}

type Notification struct {
	ID        string                     `json:"id"`
	AccountID string                     `json:"account_id"`
	Category  types.NotificationCategory `json:"category"`
	Title     string                     `json:"title"`
	Message   string                     `json:"message"`
	Payload   map[string]string          `json:"payload,omitempty"`
	Read      bool                       `json:"read"`
	CreatedAt time.Time                  `json:"created_at"`
}

type PriceSnapshot struct {
	Symbol       string          `json:"symbol"`
	Price        decimal.Decimal `json:"price"`
	Change24h    decimal.Decimal `json:"change_24h"`
	ChangePct24h decimal.Decimal `json:"change_pct_24h"`
	MarketCap    decimal.Decimal `json:"market_cap"`
	Volume24h    decimal.Decimal `json:"volume_24h"`
	CreatedAt    time.Time       `json:"created_at"`
}
