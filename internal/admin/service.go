package admin

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"qc-ledger/internal/broker"
	"qc-ledger/internal/ident"
	"qc-ledger/internal/metrics"
	"qc-ledger/internal/notify"
	"qc-ledger/internal/storage"
	"qc-ledger/internal/types"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Service reviews pending deposit and withdrawal entries. Approval and
// rejection are decided per entry exactly once; losing a decision race
// surfaces as ErrAlreadyFinalized, not as a second effect.
type Service struct {
	store     storage.Store
	notifier  *notify.Service
	publisher broker.Publisher
	metrics   *metrics.Metrics
	issuer    string
	secret    []byte
}

func NewService(store storage.Store, notifier *notify.Service, publisher broker.Publisher, m *metrics.Metrics, issuer string, secret []byte) *Service {
	if publisher == nil {
		publisher = broker.NewDisabledPublisher()
	}
	return &Service{store: store, notifier: notifier, publisher: publisher, metrics: m, issuer: issuer, secret: secret}
}

func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	a, err := s.store.GetAdminByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.signToken(a.ID)
}

func (s *Service) signToken(adminID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   adminID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

func (s *Service) ParseToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.Issuer != s.issuer || claims.Subject == "" {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

// DeactivateAccount freezes an account. Frozen accounts keep their
// balances but reject further balance adjustments.
func (s *Service) DeactivateAccount(ctx context.Context, accountID string) error {
	return s.store.DeactivateAccount(ctx, accountID)
}

func (s *Service) ListPending(ctx context.Context) ([]storage.Entry, error) {
	return s.store.ListPendingEntries(ctx)
}

func (s *Service) GetEntry(ctx context.Context, id string) (storage.Entry, error) {
	return s.store.GetEntry(ctx, id)
}

// Approve finalizes a pending entry and applies its funding effect. A
// deposit credits the amount; a withdrawal debits it. The status change,
// the balance change and the history record commit as one unit; a
// withdrawal that would overdraw leaves the entry pending and returns
// ErrInsufficientFunds.
func (s *Service) Approve(ctx context.Context, entryID, adminID, annotation, settlementRef string) (storage.Entry, error) {
	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return storage.Entry{}, err
	}
	if entry.Kind != types.EntryKindDeposit && entry.Kind != types.EntryKindWithdrawal {
		return storage.Entry{}, storage.ErrAlreadyFinalized
	}

	delta := entry.Amount
	if entry.Kind == types.EntryKindWithdrawal {
		delta = entry.Amount.Neg()
	}
	now := time.Now().UTC()
	rec := storage.TradeRecord{
		ID:        ident.New("hst"),
		AccountID: entry.AccountID,
		Kind:      entry.Kind,
		Amount:    entry.Amount,
		Reference: entry.ID,
		CreatedAt: now,
	}
	rev := storage.Review{AdminID: adminID, Annotation: annotation, SettlementRef: settlementRef, At: now}

	updated, balance, err := s.store.CompleteEntry(ctx, entryID, rev, delta, rec)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			s.metrics.ObserveReviewConflict()
		}
		return storage.Entry{}, err
	}
	s.metrics.ObserveReview(string(updated.Kind), "approved")
	s.afterDecision(ctx, updated, types.NotificationTransactionCompleted,
		"Transaction completed",
		titleKind(updated.Kind)+" "+updated.Ticket+" for "+updated.Amount.String()+" was approved. New balance: "+balance.String())
	return updated, nil
}

// Reject finalizes a pending entry with no balance effect.
func (s *Service) Reject(ctx context.Context, entryID, adminID, annotation string) (storage.Entry, error) {
	rev := storage.Review{AdminID: adminID, Annotation: annotation, At: time.Now().UTC()}
	updated, err := s.store.TransitionEntry(ctx, entryID, types.EntryStatusRejected, rev)
	if err != nil {
		return storage.Entry{}, err
	}
	s.metrics.ObserveReview(string(updated.Kind), "rejected")
	msg := titleKind(updated.Kind) + " " + updated.Ticket + " for " + updated.Amount.String() + " was rejected."
	if annotation != "" {
		msg += " Reason: " + annotation
	}
	s.afterDecision(ctx, updated, types.NotificationTransactionRejected, "Transaction rejected", msg)
	return updated, nil
}

// afterDecision runs once the decision has committed. Failures here are
// logged, never surfaced: the authoritative state already changed.
func (s *Service) afterDecision(ctx context.Context, entry storage.Entry, category types.NotificationCategory, title, message string) {
	if s.notifier != nil {
		if _, err := s.notifier.Emit(ctx, entry.AccountID, category, title, message, map[string]string{
			"entry_id": entry.ID,
			"ticket":   entry.Ticket,
		}); err != nil {
			log.Printf("[admin] failed to emit notification for %s: %v", entry.ID, err)
		}
	}
	ev := broker.Event{
		EntryID:    entry.ID,
		AccountID:  entry.AccountID,
		Kind:       string(entry.Kind),
		Status:     string(entry.Status),
		Amount:     entry.Amount.String(),
		ReviewedBy: entry.ReviewedBy,
		At:         time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		log.Printf("[admin] failed to publish event for %s: %v", entry.ID, err)
	}
}

func titleKind(k types.EntryKind) string {
	s := string(k)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
