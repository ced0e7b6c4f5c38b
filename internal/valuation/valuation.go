package valuation

import (
	"sort"

	"github.com/shopspring/decimal"
	"qc-ledger/internal/storage"
)

// Line is the per-symbol breakdown of a holdings valuation. Unpriced marks
// symbols with no snapshot available: they contribute zero to the total
// instead of failing the computation.
type Line struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
	Unpriced bool            `json:"unpriced,omitempty"`
}

type Result struct {
	Total     decimal.Decimal `json:"total"`
	Breakdown []Line          `json:"breakdown"`
}

// Valuate converts a holdings map and the latest price snapshots into a
// total value and per-symbol breakdown. Pure function, no mutation.
func Valuate(holdings map[string]decimal.Decimal, prices map[string]storage.PriceSnapshot) Result {
	res := Result{Total: decimal.Zero, Breakdown: make([]Line, 0, len(holdings))}
	symbols := make([]string, 0, len(holdings))
	for sym := range holdings {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		qty := holdings[sym]
		line := Line{Symbol: sym, Quantity: qty}
		snap, ok := prices[sym]
		if !ok {
			line.Unpriced = true
			res.Breakdown = append(res.Breakdown, line)
			continue
		}
		line.Price = snap.Price
		line.Value = qty.Mul(snap.Price)
		res.Total = res.Total.Add(line.Value)
		res.Breakdown = append(res.Breakdown, line)
	}
	return res
}
