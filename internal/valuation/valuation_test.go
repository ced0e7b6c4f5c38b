package valuation

import (
	"testing"

	"github.com/shopspring/decimal"
	"qc-ledger/internal/storage"
)

func TestValuateSkipsUnpricedSymbols(t *testing.T) {
	holdings := map[string]decimal.Decimal{
		"ETH": decimal.RequireFromString("2"),
		"BTC": decimal.RequireFromString("0.5"),
	}
	prices := map[string]storage.PriceSnapshot{
		"ETH": {Symbol: "ETH", Price: decimal.RequireFromString("2500")},
	}

	res := Valuate(holdings, prices)
	if !res.Total.Equal(decimal.RequireFromString("5000")) {
		t.Fatalf("expected total 5000, got %s", res.Total)
	}
	if len(res.Breakdown) != 2 {
		t.Fatalf("expected both symbols in breakdown, got %+v", res.Breakdown)
	}
	// Breakdown is sorted by symbol.
	btc, eth := res.Breakdown[0], res.Breakdown[1]
	if btc.Symbol != "BTC" || !btc.Unpriced || !btc.Value.IsZero() {
		t.Fatalf("unexpected BTC line: %+v", btc)
	}
	if eth.Symbol != "ETH" || eth.Unpriced || !eth.Value.Equal(decimal.RequireFromString("5000")) {
		t.Fatalf("unexpected ETH line: %+v", eth)
	}
}

func TestValuateEmptyHoldings(t *testing.T) {
	res := Valuate(nil, nil)
	if !res.Total.IsZero() || len(res.Breakdown) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestValuateDecimalPrecision(t *testing.T) {
	holdings := map[string]decimal.Decimal{"DOGE": decimal.RequireFromString("3333.33")}
	prices := map[string]storage.PriceSnapshot{"DOGE": {Symbol: "DOGE", Price: decimal.RequireFromString("0.07")}}

	res := Valuate(holdings, prices)
	if !res.Total.Equal(decimal.RequireFromString("233.3331")) {
		t.Fatalf("expected 233.3331, got %s", res.Total)
	}
}
