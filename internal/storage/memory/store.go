package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"qc-ledger/internal/storage"
	"qc-ledger/internal/types"
)

// Store is the in-memory implementation of storage.Store. Mutations on the
// same account are serialized through a per-account mutex; accounts do not
// block each other. Entry status transitions are serialized through a single
// entries mutex, which makes TransitionEntry a true compare-and-set.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*storage.User
	byEmail  map[string]string
	admins   map[string]*storage.AdminUser
	accounts map[string]*storage.Account
	history  map[string][]storage.TradeRecord
	notifs   map[string]*storage.Notification
	prices   map[string]storage.PriceSnapshot

	entMu   sync.Mutex
	entries map[string]*storage.Entry
	order   []string // entry ids in insertion order

	lockMu   sync.Mutex
	accLocks map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]*storage.User),
		byEmail:  make(map[string]string),
		admins:   make(map[string]*storage.AdminUser),
		accounts: make(map[string]*storage.Account),
		history:  make(map[string][]storage.TradeRecord),
		notifs:   make(map[string]*storage.Notification),
		prices:   make(map[string]storage.PriceSnapshot),
		entries:  make(map[string]*storage.Entry),
		accLocks: make(map[string]*sync.Mutex),
	}
}

func (s *Store) Close() {}

func (s *Store) accountLock(id string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if _, ok := s.accLocks[id]; !ok {
		s.accLocks[id] = &sync.Mutex{}
	}
	return s.accLocks[id]
}

func (s *Store) CreateUser(ctx context.Context, u storage.User, acc storage.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(u.Email))
	if _, taken := s.byEmail[key]; taken {
		return storage.ErrEmailTaken
	}
	cu := u
	ca := acc
	if ca.Holdings == nil {
		ca.Holdings = map[string]decimal.Decimal{}
	}
	s.users[cu.ID] = &cu
	s.byEmail[key] = cu.ID
	s.accounts[ca.ID] = &ca
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return *u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return *s.users[id], nil
}

func (s *Store) UpsertAdmin(ctx context.Context, a storage.AdminUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ca := a
	s.admins[a.Username] = &ca
	return nil
}

func (s *Store) GetAdminByUsername(ctx context.Context, username string) (storage.AdminUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[username]
	if !ok {
		return storage.AdminUser{}, storage.ErrNotFound
	}
	return *a, nil
}

func (s *Store) getActiveAccount(id string) (*storage.Account, error) {
	acc, ok := s.accounts[id]
	if !ok || !acc.Active {
		return nil, storage.ErrNotFound
	}
	return acc, nil
}

func snapshotAccount(acc *storage.Account) storage.Account {
	out := *acc
	out.Holdings = make(map[string]decimal.Decimal, len(acc.Holdings))
	for sym, qty := range acc.Holdings {
		out.Holdings[sym] = qty
	}
	return out
}

func (s *Store) GetAccount(ctx context.Context, id string) (storage.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, err := s.getActiveAccount(id)
	if err != nil {
		return storage.Account{}, err
	}
	return snapshotAccount(acc), nil
}

func (s *Store) AdjustFunding(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	lock := s.accountLock(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.getActiveAccount(id)
	if err != nil {
		return decimal.Zero, err
	}
	next := acc.FundingBalance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, storage.ErrInsufficientFunds
	}
	acc.FundingBalance = next
	acc.UpdatedAt = time.Now().UTC()
	return next, nil
}

func (s *Store) AdjustDemo(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	lock := s.accountLock(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.getActiveAccount(id)
	if err != nil {
		return decimal.Zero, err
	}
	next := acc.DemoBalance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, storage.ErrInsufficientFunds
	}
	acc.DemoBalance = next
	acc.UpdatedAt = time.Now().UTC()
	return next, nil
}

func (s *Store) AdjustHolding(ctx context.Context, id, symbol string, delta decimal.Decimal) (decimal.Decimal, error) {
	lock := s.accountLock(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.getActiveAccount(id)
	if err != nil {
		return decimal.Zero, err
	}
	next := acc.Holdings[symbol].Add(delta)
	if next.IsNegative() {
		return decimal.Zero, storage.ErrInsufficientHoldings
	}
	if next.IsZero() {
		delete(acc.Holdings, symbol)
	} else {
		acc.Holdings[symbol] = next
	}
	acc.UpdatedAt = time.Now().UTC()
	return next, nil
}

func (s *Store) AppendHistory(ctx context.Context, id string, rec storage.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return storage.ErrNotFound
	}
	s.history[id] = append(s.history[id], rec)
	return nil
}

func (s *Store) ListHistory(ctx context.Context, id string) ([]storage.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[id]; !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]storage.TradeRecord, len(s.history[id]))
	copy(out, s.history[id])
	return out, nil
}

func (s *Store) DeactivateAccount(ctx context.Context, id string) error {
	lock := s.accountLock(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return storage.ErrNotFound
	}
	acc.Active = false
	acc.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ExecuteTrade(ctx context.Context, id string, demoDelta decimal.Decimal, symbol string, qtyDelta decimal.Decimal, rec storage.TradeRecord) (storage.Account, error) {
	lock := s.accountLock(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.getActiveAccount(id)
	if err != nil {
		return storage.Account{}, err
	}
	nextDemo := acc.DemoBalance.Add(demoDelta)
	if nextDemo.IsNegative() {
		return storage.Account{}, storage.ErrInsufficientFunds
	}
	nextQty := acc.Holdings[symbol].Add(qtyDelta)
	if nextQty.IsNegative() {
		return storage.Account{}, storage.ErrInsufficientHoldings
	}
	acc.DemoBalance = nextDemo
	if nextQty.IsZero() {
		delete(acc.Holdings, symbol)
	} else {
		acc.Holdings[symbol] = nextQty
	}
	acc.UpdatedAt = time.Now().UTC()
	s.history[id] = append(s.history[id], rec)
	return snapshotAccount(acc), nil
}

func (s *Store) InsertEntry(ctx context.Context, e storage.Entry) error {
	s.mu.RLock()
	_, ok := s.accounts[e.AccountID]
	s.mu.RUnlock()
	if !ok {
		return storage.ErrNotFound
	}
	s.entMu.Lock()
	defer s.entMu.Unlock()
	ce := e
	s.entries[ce.ID] = &ce
	s.order = append(s.order, ce.ID)
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id string) (storage.Entry, error) {
	s.entMu.Lock()
	defer s.entMu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return storage.Entry{}, storage.ErrNotFound
	}
	return *e, nil
}

func (s *Store) ListEntriesByAccount(ctx context.Context, accountID string) ([]storage.Entry, error) {
	s.entMu.Lock()
	defer s.entMu.Unlock()
	var out []storage.Entry
	// newest first
	for i := len(s.order) - 1; i >= 0; i-- {
		e := s.entries[s.order[i]]
		if e.AccountID == accountID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *Store) ListPendingEntries(ctx context.Context) ([]storage.Entry, error) {
	s.entMu.Lock()
	defer s.entMu.Unlock()
	var out []storage.Entry
	for i := len(s.order) - 1; i >= 0; i-- {
		e := s.entries[s.order[i]]
		if e.Status == types.EntryStatusPending {
			out = append(out, *e)
		}
	}
	return out, nil
}

func applyReview(e *storage.Entry, target types.EntryStatus, rev storage.Review) {
	at := rev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	e.Status = target
	e.ReviewedBy = rev.AdminID
	e.ReviewedAt = &at
	if rev.Annotation != "" {
		e.Annotation = rev.Annotation
	}
	if rev.SettlementRef != "" {
		e.SettlementRef = rev.SettlementRef
	}
	e.UpdatedAt = at
}

func (s *Store) TransitionEntry(ctx context.Context, id string, target types.EntryStatus, rev storage.Review) (storage.Entry, error) {
	s.entMu.Lock()
	defer s.entMu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return storage.Entry{}, storage.ErrNotFound
	}
	if e.Status != types.EntryStatusPending {
		return storage.Entry{}, storage.ErrAlreadyFinalized
	}
	applyReview(e, target, rev)
	return *e, nil
}

func (s *Store) CompleteEntry(ctx context.Context, id string, rev storage.Review, fundingDelta decimal.Decimal, rec storage.TradeRecord) (storage.Entry, decimal.Decimal, error) {
	s.entMu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.entMu.Unlock()
		return storage.Entry{}, decimal.Zero, storage.ErrNotFound
	}
	accountID := e.AccountID
	s.entMu.Unlock()

	// Account lock first, entry lock second; every multi-lock path takes
	// them in this order.
	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()
	s.entMu.Lock()
	defer s.entMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok = s.entries[id]
	if !ok {
		return storage.Entry{}, decimal.Zero, storage.ErrNotFound
	}
	if e.Status != types.EntryStatusPending {
		return storage.Entry{}, decimal.Zero, storage.ErrAlreadyFinalized
	}
	acc, err := s.getActiveAccount(e.AccountID)
	if err != nil {
		return storage.Entry{}, decimal.Zero, err
	}
	next := acc.FundingBalance.Add(fundingDelta)
	if next.IsNegative() {
		return storage.Entry{}, decimal.Zero, storage.ErrInsufficientFunds
	}

	acc.FundingBalance = next
	acc.UpdatedAt = time.Now().UTC()
	applyReview(e, types.EntryStatusCompleted, rev)
	s.history[e.AccountID] = append(s.history[e.AccountID], rec)
	return *e, next, nil
}

func (s *Store) InsertNotification(ctx context.Context, n storage.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[n.AccountID]; !ok {
		return storage.ErrNotFound
	}
	cn := n
	s.notifs[cn.ID] = &cn
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, accountID string) ([]storage.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []storage.Notification
	for _, n := range s.notifs {
		if n.AccountID == accountID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifs[id]
	if !ok {
		return storage.ErrNotFound
	}
	if n.AccountID != accountID {
		return storage.ErrForbidden
	}
	n.Read = true
	return nil
}

func (s *Store) InsertPriceSnapshot(ctx context.Context, p storage.PriceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.prices[p.Symbol]
	if !ok || !p.CreatedAt.Before(prev.CreatedAt) {
		s.prices[p.Symbol] = p
	}
	return nil
}

func (s *Store) LatestPrices(ctx context.Context) (map[string]storage.PriceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]storage.PriceSnapshot, len(s.prices))
	for sym, p := range s.prices {
		out[sym] = p
	}
	return out, nil
}
