package broker

import (
	"context"
	"time"
)

// Event is the message published to downstream consumers whenever a ledger
// entry reaches a terminal status.
type Event struct {
	EntryID    string    `json:"entry_id"`
	AccountID  string    `json:"account_id"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	Amount     string    `json:"amount"`
	ReviewedBy string    `json:"reviewed_by"`
	At         time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}
