// Package pricing derives invoice totals from line data. All functions are
// pure: they never modify their arguments.
package pricing

import "github.com/safar/go-pos-register/internal/basket"

type Totals struct {
	TotalAmount   int64 `json:"total_amount"`
	TotalDiscount int64 `json:"total_discount"`
	AmountToPay   int64 `json:"amount_to_pay"`
}

// LineTotal is unitPrice×quantity − discount.
func LineTotal(l basket.LineItem) int64 {
	return l.Gross() - l.Discount
}

// Recompute returns a copy of inv with every line total and the three invoice
// totals rederived.
func Recompute(inv basket.Invoice) basket.Invoice {
	out := inv.Clone()

	var t Totals
	for i := range out.Lines {
		line := &out.Lines[i]
		line.Total = LineTotal(*line)
		line.ExceedsStock = line.Quantity > line.StockSnapshot
		t.TotalAmount += line.Gross()
		t.TotalDiscount += line.Discount
	}
	t.AmountToPay = t.TotalAmount - t.TotalDiscount

	out.TotalAmount = t.TotalAmount
	out.TotalDiscount = t.TotalDiscount
	out.AmountToPay = t.AmountToPay
	return out
}

// InvoiceTotals computes totals from the lines without trusting the cached
// invoice fields.
func InvoiceTotals(inv basket.Invoice) Totals {
	r := Recompute(inv)
	return Totals{
		TotalAmount:   r.TotalAmount,
		TotalDiscount: r.TotalDiscount,
		AmountToPay:   r.AmountToPay,
	}
}

// AggregateAll sums the totals of every open invoice. This is the amount a
// checkout charges.
func AggregateAll(invoices []basket.Invoice) Totals {
	var sum Totals
	for _, inv := range invoices {
		t := InvoiceTotals(inv)
		sum.TotalAmount += t.TotalAmount
		sum.TotalDiscount += t.TotalDiscount
		sum.AmountToPay += t.AmountToPay
	}
	return sum
}
