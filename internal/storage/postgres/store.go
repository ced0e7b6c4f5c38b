package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"qc-ledger/internal/storage"
	"qc-ledger/internal/types"
)

const maxTxRetries = 3

// Store is the Postgres implementation of storage.Store. Balance and
// holdings invariants are enforced by conditional updates; the composed
// review operation runs in a serializable transaction retried a bounded
// number of times before surfacing storage.ErrConflict.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) inSerializableTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		err = fn(tx)
		if err == nil {
			err = tx.Commit(ctx)
			if err == nil {
				return nil
			}
		} else {
			_ = tx.Rollback(ctx)
		}
		if !isSerializationError(err) {
			return err
		}
	}
	return storage.ErrConflict
}

func (s *Store) CreateUser(ctx context.Context, u storage.User, acc storage.Account) error {
	return s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, email, password_hash, account_id, created_at)
			VALUES ($1, lower($2), $3, $4, $5)
		`, u.ID, u.Email, u.PasswordHash, u.AccountID, u.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return storage.ErrEmailTaken
			}
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO accounts (id, user_id, funding_balance, demo_balance, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, TRUE, $5, $5)
		`, acc.ID, acc.UserID, acc.FundingBalance, acc.DemoBalance, acc.CreatedAt)
		return err
	})
}

func (s *Store) GetUser(ctx context.Context, id string) (storage.User, error) {
	var u storage.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, account_id, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.AccountID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.User{}, storage.ErrNotFound
	}
	return u, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (storage.User, error) {
	var u storage.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, account_id, created_at
		FROM users
		WHERE email = lower($1)
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.AccountID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.User{}, storage.ErrNotFound
	}
	return u, err
}

func (s *Store) UpsertAdmin(ctx context.Context, a storage.AdminUser) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admin_users (id, username, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash
	`, a.ID, a.Username, a.PasswordHash, a.CreatedAt)
	return err
}

func (s *Store) GetAdminByUsername(ctx context.Context, username string) (storage.AdminUser, error) {
	var a storage.AdminUser
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at
		FROM admin_users
		WHERE username = $1
	`, username).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.AdminUser{}, storage.ErrNotFound
	}
	return a, err
}

func (s *Store) getAccountTx(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, id string) (storage.Account, error) {
	var acc storage.Account
	err := q.QueryRow(ctx, `
		SELECT id, user_id, funding_balance, demo_balance, active, created_at, updated_at
		FROM accounts
		WHERE id = $1 AND active
	`, id).Scan(&acc.ID, &acc.UserID, &acc.FundingBalance, &acc.DemoBalance, &acc.Active, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Account{}, storage.ErrNotFound
		}
		return storage.Account{}, err
	}
	rows, err := q.Query(ctx, `SELECT symbol, quantity FROM account_holdings WHERE account_id = $1`, id)
	if err != nil {
		return storage.Account{}, err
	}
	defer rows.Close()
	acc.Holdings = map[string]decimal.Decimal{}
	for rows.Next() {
		var sym string
		var qty decimal.Decimal
		if err := rows.Scan(&sym, &qty); err != nil {
			return storage.Account{}, err
		}
		acc.Holdings[sym] = qty
	}
	return acc, rows.Err()
}

func (s *Store) GetAccount(ctx context.Context, id string) (storage.Account, error) {
	return s.getAccountTx(ctx, s.pool, id)
}

func (s *Store) adjustBalance(ctx context.Context, column, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	var next decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		UPDATE accounts
		SET `+column+` = `+column+` + $2, updated_at = NOW()
		WHERE id = $1 AND active AND `+column+` + $2 >= 0
		RETURNING `+column+`
	`, id, delta).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if checkErr := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1 AND active)`, id).Scan(&exists); checkErr != nil {
			return decimal.Zero, checkErr
		}
		if !exists {
			return decimal.Zero, storage.ErrNotFound
		}
		return decimal.Zero, storage.ErrInsufficientFunds
	}
	return next, err
}

func (s *Store) AdjustFunding(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	return s.adjustBalance(ctx, "funding_balance", id, delta)
}

func (s *Store) AdjustDemo(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	return s.adjustBalance(ctx, "demo_balance", id, delta)
}

func adjustHoldingTx(ctx context.Context, tx pgx.Tx, id, symbol string, delta decimal.Decimal) (decimal.Decimal, error) {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1 AND active)`, id).Scan(&exists); err != nil {
		return decimal.Zero, err
	}
	if !exists {
		return decimal.Zero, storage.ErrNotFound
	}
	current := decimal.Zero
	err := tx.QueryRow(ctx, `
		SELECT quantity FROM account_holdings
		WHERE account_id = $1 AND symbol = $2
		FOR UPDATE
	`, id, symbol).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, err
	}
	next := current.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, storage.ErrInsufficientHoldings
	}
	if next.IsZero() {
		_, err = tx.Exec(ctx, `DELETE FROM account_holdings WHERE account_id = $1 AND symbol = $2`, id, symbol)
	} else {
		_, err = tx.Exec(ctx, `
			INSERT INTO account_holdings (account_id, symbol, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (account_id, symbol) DO UPDATE SET quantity = EXCLUDED.quantity
		`, id, symbol, next)
	}
	if err != nil {
		return decimal.Zero, err
	}
	_, err = tx.Exec(ctx, `UPDATE accounts SET updated_at = NOW() WHERE id = $1`, id)
	return next, err
}

func (s *Store) AdjustHolding(ctx context.Context, id, symbol string, delta decimal.Decimal) (decimal.Decimal, error) {
	var next decimal.Decimal
	err := s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		var err error
		next, err = adjustHoldingTx(ctx, tx, id, symbol, delta)
		return err
	})
	return next, err
}

func insertHistoryTx(ctx context.Context, tx pgx.Tx, rec storage.TradeRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO trade_history (id, account_id, kind, symbol, side, quantity, price, amount, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.ID, rec.AccountID, string(rec.Kind), rec.Symbol, string(rec.Side), rec.Quantity, rec.Price, rec.Amount, rec.Reference, rec.CreatedAt)
	return err
}

func (s *Store) AppendHistory(ctx context.Context, id string, rec storage.TradeRecord) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return storage.ErrNotFound
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trade_history (id, account_id, kind, symbol, side, quantity, price, amount, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.ID, id, string(rec.Kind), rec.Symbol, string(rec.Side), rec.Quantity, rec.Price, rec.Amount, rec.Reference, rec.CreatedAt)
	return err
}

func (s *Store) ListHistory(ctx context.Context, id string) ([]storage.TradeRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, kind, symbol, side, quantity, price, amount, reference, created_at
		FROM trade_history
		WHERE account_id = $1
		ORDER BY created_at ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.TradeRecord
	for rows.Next() {
		var rec storage.TradeRecord
		var kind, side string
		if err := rows.Scan(&rec.ID, &rec.AccountID, &kind, &rec.Symbol, &side, &rec.Quantity, &rec.Price, &rec.Amount, &rec.Reference, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Kind = types.EntryKind(kind)
		rec.Side = types.TradeSide(side)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) DeactivateAccount(ctx context.Context, id string) error {
	cmd, err := s.pool.Exec(ctx, `UPDATE accounts SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ExecuteTrade(ctx context.Context, id string, demoDelta decimal.Decimal, symbol string, qtyDelta decimal.Decimal, rec storage.TradeRecord) (storage.Account, error) {
	var out storage.Account
	err := s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		var next decimal.Decimal
		err := tx.QueryRow(ctx, `
			UPDATE accounts
			SET demo_balance = demo_balance + $2, updated_at = NOW()
			WHERE id = $1 AND active AND demo_balance + $2 >= 0
			RETURNING demo_balance
		`, id, demoDelta).Scan(&next)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				var exists bool
				if checkErr := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1 AND active)`, id).Scan(&exists); checkErr != nil {
					return checkErr
				}
				if !exists {
					return storage.ErrNotFound
				}
				return storage.ErrInsufficientFunds
			}
			return err
		}
		if _, err := adjustHoldingTx(ctx, tx, id, symbol, qtyDelta); err != nil {
			return err
		}
		if err := insertHistoryTx(ctx, tx, rec); err != nil {
			return err
		}
		var loadErr error
		out, loadErr = s.getAccountTx(ctx, tx, id)
		return loadErr
	})
	if err != nil {
		return storage.Account{}, err
	}
	return out, nil
}

const entryColumns = `
	id, ticket, account_id, kind, amount, status,
	COALESCE(network, ''), COALESCE(address, ''),
	processing_fee, network_fee,
	COALESCE(settlement_ref, ''), COALESCE(annotation, ''),
	COALESCE(reviewed_by, ''), reviewed_at,
	created_at, updated_at
`

func scanEntry(row pgx.Row) (storage.Entry, error) {
	var e storage.Entry
	var kind, status string
	err := row.Scan(
		&e.ID, &e.Ticket, &e.AccountID, &kind, &e.Amount, &status,
		&e.Network, &e.Address,
		&e.ProcessingFee, &e.NetworkFee,
		&e.SettlementRef, &e.Annotation,
		&e.ReviewedBy, &e.ReviewedAt,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return storage.Entry{}, err
	}
	e.Kind = types.EntryKind(kind)
	e.Status = types.EntryStatus(status)
	return e, nil
}

func (s *Store) InsertEntry(ctx context.Context, e storage.Entry) error {
	cmd, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_entries (
			id, ticket, account_id, kind, amount, status,
			network, address, processing_fee, network_fee,
			settlement_ref, annotation, reviewed_by, reviewed_at,
			created_at, updated_at
		)
		SELECT $1, $2, $3, $4, $5, $6,
			NULLIF($7, ''), NULLIF($8, ''), $9, $10,
			NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, ''), $14,
			$15, $16
		WHERE EXISTS (SELECT 1 FROM accounts WHERE id = $3)
	`, e.ID, e.Ticket, e.AccountID, string(e.Kind), e.Amount, string(e.Status),
		e.Network, e.Address, e.ProcessingFee, e.NetworkFee,
		e.SettlementRef, e.Annotation, e.ReviewedBy, e.ReviewedAt,
		e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id string) (storage.Entry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Entry{}, storage.ErrNotFound
	}
	return e, err
}

func (s *Store) listEntries(ctx context.Context, where string, args ...any) ([]storage.Entry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListEntriesByAccount(ctx context.Context, accountID string) ([]storage.Entry, error) {
	return s.listEntries(ctx, `WHERE account_id = $1`, accountID)
}

func (s *Store) ListPendingEntries(ctx context.Context) ([]storage.Entry, error) {
	return s.listEntries(ctx, `WHERE status = 'pending'`)
}

func transitionEntryTx(ctx context.Context, tx pgx.Tx, id string, target types.EntryStatus, rev storage.Review) (storage.Entry, error) {
	at := rev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	e, err := scanEntry(tx.QueryRow(ctx, `
		UPDATE ledger_entries
		SET status = $2,
			reviewed_by = $3,
			reviewed_at = $4,
			annotation = COALESCE(NULLIF($5, ''), annotation),
			settlement_ref = COALESCE(NULLIF($6, ''), settlement_ref),
			updated_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING `+entryColumns+`
	`, id, string(target), rev.AdminID, at, rev.Annotation, rev.SettlementRef))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return storage.Entry{}, err
	}
	var exists bool
	if checkErr := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE id = $1)`, id).Scan(&exists); checkErr != nil {
		return storage.Entry{}, checkErr
	}
	if !exists {
		return storage.Entry{}, storage.ErrNotFound
	}
	return storage.Entry{}, storage.ErrAlreadyFinalized
}

func (s *Store) TransitionEntry(ctx context.Context, id string, target types.EntryStatus, rev storage.Review) (storage.Entry, error) {
	var out storage.Entry
	err := s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = transitionEntryTx(ctx, tx, id, target, rev)
		return err
	})
	if err != nil {
		return storage.Entry{}, err
	}
	return out, nil
}

func (s *Store) CompleteEntry(ctx context.Context, id string, rev storage.Review, fundingDelta decimal.Decimal, rec storage.TradeRecord) (storage.Entry, decimal.Decimal, error) {
	var out storage.Entry
	var balance decimal.Decimal
	err := s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		e, err := transitionEntryTx(ctx, tx, id, types.EntryStatusCompleted, rev)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
			UPDATE accounts
			SET funding_balance = funding_balance + $2, updated_at = NOW()
			WHERE id = $1 AND active AND funding_balance + $2 >= 0
			RETURNING funding_balance
		`, e.AccountID, fundingDelta).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				var exists bool
				if checkErr := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1 AND active)`, e.AccountID).Scan(&exists); checkErr != nil {
					return checkErr
				}
				if !exists {
					return storage.ErrNotFound
				}
				return storage.ErrInsufficientFunds
			}
			return err
		}
		if err := insertHistoryTx(ctx, tx, rec); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return storage.Entry{}, decimal.Zero, err
	}
	return out, balance, nil
}

func (s *Store) InsertNotification(ctx context.Context, n storage.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}
	cmd, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, account_id, category, title, message, payload, read, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE EXISTS (SELECT 1 FROM accounts WHERE id = $2)
	`, n.ID, n.AccountID, string(n.Category), n.Title, n.Message, payload, n.Read, n.CreatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, accountID string) ([]storage.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, category, title, message, payload, read, created_at
		FROM notifications
		WHERE account_id = $1
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.Notification
	for rows.Next() {
		var n storage.Notification
		var category string
		var payload []byte
		if err := rows.Scan(&n.ID, &n.AccountID, &category, &n.Title, &n.Message, &payload, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Category = types.NotificationCategory(category)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &n.Payload); err != nil {
				return nil, err
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, id, accountID string) error {
	var owner string
	err := s.pool.QueryRow(ctx, `SELECT account_id FROM notifications WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrNotFound
		}
		return err
	}
	if owner != accountID {
		return storage.ErrForbidden
	}
	_, err = s.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	return err
}

func (s *Store) InsertPriceSnapshot(ctx context.Context, p storage.PriceSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO price_snapshots (symbol, price, change_24h, change_pct_24h, market_cap, volume_24h, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.Symbol, p.Price, p.Change24h, p.ChangePct24h, p.MarketCap, p.Volume24h, p.CreatedAt)
	return err
}

func (s *Store) LatestPrices(ctx context.Context) (map[string]storage.PriceSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (symbol)
			symbol, price, change_24h, change_pct_24h, market_cap, volume_24h, created_at
		FROM price_snapshots
		ORDER BY symbol, created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]storage.PriceSnapshot{}
	for rows.Next() {
		var p storage.PriceSnapshot
		if err := rows.Scan(&p.Symbol, &p.Price, &p.Change24h, &p.ChangePct24h, &p.MarketCap, &p.Volume24h, &p.CreatedAt); err != nil {
			return nil, err
		}
		out[p.Symbol] = p
	}
	return out, rows.Err()
}
