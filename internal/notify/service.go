package notify

import (
	"context"
	"time"

	"qc-ledger/internal/ident"
	"qc-ledger/internal/storage"
	"qc-ledger/internal/types"
)

// Service appends and serves per-account notifications. Emitters call it
// after the triggering change has committed, so a notification never
// references state that was rolled back.
type Service struct {
	store storage.Store
}

func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

func (s *Service) Emit(ctx context.Context, accountID string, category types.NotificationCategory, title, message string, payload map[string]string) (storage.Notification, error) {
	n := storage.Notification{
		ID:        ident.New("ntf"),
		AccountID: accountID,
		Category:  category,
		Title:     title,
		Message:   message,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertNotification(ctx, n); err != nil {
		return storage.Notification{}, err
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, accountID string) ([]storage.Notification, error) {
	return s.store.ListNotifications(ctx, accountID)
}

// MarkRead flips the read flag for a notification owned by accountID.
// Marking an already-read notification is a no-op.
func (s *Service) MarkRead(ctx context.Context, id, accountID string) error {
	return s.store.MarkNotificationRead(ctx, id, accountID)
}
