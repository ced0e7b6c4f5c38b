package marketdata

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"qc-ledger/internal/storage"
)

var ErrInvalidSnapshot = errors.New("invalid price snapshot")

// Service ingests price snapshots and serves the latest inventory. Every
// accepted snapshot is persisted and then fanned out on the bus.
type Service struct {
	store storage.Store
	bus   *Bus
}

func NewService(store storage.Store, bus *Bus) *Service {
	return &Service{store: store, bus: bus}
}

type SnapshotInput struct {
	Symbol       string `json:"symbol"`
	Price        string `json:"price"`
	Change24h    string `json:"change_24h"`
	ChangePct24h string `json:"change_pct_24h"`
	MarketCap    string `json:"market_cap"`
	Volume24h    string `json:"volume_24h"`
}

func (s *Service) Ingest(ctx context.Context, in SnapshotInput) (storage.PriceSnapshot, error) {
	symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
	price, err := decimal.NewFromString(in.Price)
	if err != nil || symbol == "" || !price.GreaterThan(decimal.Zero) {
		return storage.PriceSnapshot{}, ErrInvalidSnapshot
	}
	snap := storage.PriceSnapshot{
		Symbol:    symbol,
		Price:     price,
		CreatedAt: time.Now().UTC(),
	}
	snap.Change24h = parseOrZero(in.Change24h)
	snap.ChangePct24h = parseOrZero(in.ChangePct24h)
	snap.MarketCap = parseOrZero(in.MarketCap)
	snap.Volume24h = parseOrZero(in.Volume24h)

	if err := s.store.InsertPriceSnapshot(ctx, snap); err != nil {
		return storage.PriceSnapshot{}, err
	}
	s.bus.Publish(Event{Type: "price", Data: snap})
	return snap, nil
}

func (s *Service) Latest(ctx context.Context) (map[string]storage.PriceSnapshot, error) {
	return s.store.LatestPrices(ctx)
}

func parseOrZero(v string) decimal.Decimal {
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}
