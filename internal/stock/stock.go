// Package stock checks requested quantities across every open invoice
// against the last fetched stock snapshot. It is a best-effort pre-check: the
// store's own guard is authoritative.
package stock

import (
	"sort"

	"github.com/safar/go-pos-register/internal/basket"
)

type Shortfall struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Required    int    `json:"required"`
	Available   int    `json:"available"`
}

type Verdict struct {
	OK         bool        `json:"ok"`
	Shortfalls []Shortfall `json:"shortfalls,omitempty"`
}

type snapshot struct {
	name      string
	available int
}

// Validate sums quantity per product over all lines of all invoices and
// reports every product whose sum exceeds its snapshot. Shortfalls are sorted
// by product id.
func Validate(invoices []basket.Invoice) Verdict {
	required := Required(invoices)
	snaps := snapshots(invoices)

	var shortfalls []Shortfall
	for id, qty := range required {
		snap := snaps[id]
		if qty > snap.available {
			shortfalls = append(shortfalls, Shortfall{
				ProductID:   id,
				ProductName: snap.name,
				Required:    qty,
				Available:   snap.available,
			})
		}
	}

	sort.Slice(shortfalls, func(i, j int) bool {
		return shortfalls[i].ProductID < shortfalls[j].ProductID
	})

	return Verdict{OK: len(shortfalls) == 0, Shortfalls: shortfalls}
}

// snapshots picks one stock snapshot and display name per product. Lines of
// a product normally agree on both. When they do not, the smallest snapshot
// and the lexically smallest name win, so the result never depends on which
// invoice or line was seen first.
func snapshots(invoices []basket.Invoice) map[string]snapshot {
	out := make(map[string]snapshot)
	for _, inv := range invoices {
		for _, line := range inv.Lines {
			cur, ok := out[line.ProductID]
			if !ok {
				out[line.ProductID] = snapshot{name: line.Name, available: line.StockSnapshot}
				continue
			}
			if line.StockSnapshot < cur.available {
				cur.available = line.StockSnapshot
			}
			if line.Name < cur.name {
				cur.name = line.Name
			}
			out[line.ProductID] = cur
		}
	}
	return out
}

// Required returns the summed quantity per product across invoices.
func Required(invoices []basket.Invoice) map[string]int {
	out := make(map[string]int)
	for _, inv := range invoices {
		for _, line := range inv.Lines {
			out[line.ProductID] += line.Quantity
		}
	}
	return out
}
