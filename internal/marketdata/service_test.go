package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"qc-ledger/internal/storage/memory"
)

func TestIngestValidatesAndPersists(t *testing.T) {
	s := memory.NewStore()
	bus := NewBus()
	svc := NewService(s, bus)
	ctx := context.Background()

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	if _, err := svc.Ingest(ctx, SnapshotInput{Symbol: "BTC", Price: "-1"}); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("negative price: expected ErrInvalidSnapshot, got %v", err)
	}
	if _, err := svc.Ingest(ctx, SnapshotInput{Symbol: "", Price: "100"}); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("empty symbol: expected ErrInvalidSnapshot, got %v", err)
	}

	snap, err := svc.Ingest(ctx, SnapshotInput{Symbol: "btc", Price: "65000", Change24h: "-120.5"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if snap.Symbol != "BTC" {
		t.Fatalf("symbol not normalized: %s", snap.Symbol)
	}

	select {
	case evt := <-sub:
		if evt.Type != "price" {
			t.Fatalf("unexpected event type: %s", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published on the bus")
	}

	prices, err := svc.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !prices["BTC"].Price.Equal(snap.Price) {
		t.Fatalf("snapshot not persisted: %+v", prices)
	}
}

func TestBusDropsSlowSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	// More events than the channel buffers; Publish must never block.
	for i := 0; i < 500; i++ {
		bus.Publish(Event{Type: "price"})
	}
	if len(sub) != cap(sub) {
		t.Fatalf("expected a full buffer, got %d of %d", len(sub), cap(sub))
	}
}
