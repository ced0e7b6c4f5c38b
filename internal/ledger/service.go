package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"qc-ledger/internal/ident"
	"qc-ledger/internal/metrics"
	"qc-ledger/internal/storage"
	"qc-ledger/internal/types"
)

// ErrInvalidAmount rejects an entry at creation; nothing is persisted.
var ErrInvalidAmount = errors.New("invalid amount")

type Service struct {
	store   storage.Store
	metrics *metrics.Metrics
}

func NewService(store storage.Store, m *metrics.Metrics) *Service {
	return &Service{store: store, metrics: m}
}

type CreateParams struct {
	AccountID     string
	Kind          types.EntryKind
	Amount        decimal.Decimal
	Network       string
	Address       string
	ProcessingFee decimal.Decimal
	NetworkFee    decimal.Decimal
}

func ticketKind(kind types.EntryKind) string {
	switch kind {
	case types.EntryKindDeposit:
		return "dep"
	case types.EntryKindWithdrawal:
		return "wdr"
	default:
		return "trd"
	}
}

// Create validates the request and persists a pending entry. Amount and fees
// are fixed here and never change afterwards.
func (s *Service) Create(ctx context.Context, p CreateParams) (storage.Entry, error) {
	switch p.Kind {
	case types.EntryKindDeposit, types.EntryKindWithdrawal, types.EntryKindTrade:
	default:
		return storage.Entry{}, ErrInvalidAmount
	}
	if !p.Amount.GreaterThan(decimal.Zero) {
		return storage.Entry{}, ErrInvalidAmount
	}
	if p.ProcessingFee.IsNegative() || p.NetworkFee.IsNegative() {
		return storage.Entry{}, ErrInvalidAmount
	}
	if p.Kind == types.EntryKindWithdrawal && p.ProcessingFee.Add(p.NetworkFee).GreaterThan(p.Amount) {
		return storage.Entry{}, ErrInvalidAmount
	}

	now := time.Now().UTC()
	id := ident.New("txn")
	e := storage.Entry{
		ID:            id,
		Ticket:        ident.Ticket(ticketKind(p.Kind), id),
		AccountID:     p.AccountID,
		Kind:          p.Kind,
		Amount:        p.Amount,
		Status:        types.EntryStatusPending,
		Network:       p.Network,
		Address:       p.Address,
		ProcessingFee: p.ProcessingFee,
		NetworkFee:    p.NetworkFee,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertEntry(ctx, e); err != nil {
		return storage.Entry{}, err
	}
	s.metrics.ObserveEntry(string(p.Kind))
	return e, nil
}

func (s *Service) Get(ctx context.Context, entryID string) (storage.Entry, error) {
	return s.store.GetEntry(ctx, entryID)
}

// ListForAccount returns the account's entries, newest first.
func (s *Service) ListForAccount(ctx context.Context, accountID string) ([]storage.Entry, error) {
	return s.store.ListEntriesByAccount(ctx, accountID)
}

// ListPending returns all pending entries, newest first. Admin-facing.
func (s *Service) ListPending(ctx context.Context) ([]storage.Entry, error) {
	return s.store.ListPendingEntries(ctx)
}

// Transition moves an entry out of pending with compare-and-set semantics.
// It does not touch balances; the admin review workflow composes the two
// through the store when approving.
func (s *Service) Transition(ctx context.Context, entryID string, target types.EntryStatus, rev storage.Review) (storage.Entry, error) {
	if !target.Terminal() {
		return storage.Entry{}, errors.New("target status must be terminal")
	}
	return s.store.TransitionEntry(ctx, entryID, target, rev)
}
