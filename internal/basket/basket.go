// Package basket holds the draft invoice types shared by the cart, pricing,
// stock and checkout packages.
package basket

import (
	"fmt"

	"github.com/safar/go-pos-register/internal/models"
)

type Variant struct {
	Color string `json:"color,omitempty"`
	Size  string `json:"size,omitempty"`
}

// LineItem is one product entry in a draft invoice. Total and ExceedsStock
// are derived and rewritten on every mutation.
type LineItem struct {
	ProductID     string   `json:"product_id"`
	Name          string   `json:"name"`
	UnitPrice     int64    `json:"unit_price"`
	Quantity      int      `json:"quantity"`
	Discount      int64    `json:"discount"`
	StockSnapshot int      `json:"stock_snapshot"`
	Variant       *Variant `json:"variant,omitempty"`
	Total         int64    `json:"total"`
	ExceedsStock  bool     `json:"exceeds_stock"`
}

func (l LineItem) Gross() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Label is the product name with its variant attributes, as printed on the order line.
func (l LineItem) Label() string {
	if l.Variant == nil {
		return l.Name
	}
	switch {
	case l.Variant.Color != "" && l.Variant.Size != "":
		return fmt.Sprintf("%s (%s / %s)", l.Name, l.Variant.Color, l.Variant.Size)
	case l.Variant.Color != "":
		return fmt.Sprintf("%s (%s)", l.Name, l.Variant.Color)
	case l.Variant.Size != "":
		return fmt.Sprintf("%s (%s)", l.Name, l.Variant.Size)
	}
	return l.Name
}

// Invoice is a draft basket.
type Invoice struct {
	ID            int              `json:"id"`
	Name          string           `json:"name"`
	Lines         []LineItem       `json:"lines"`
	Note          string           `json:"note,omitempty"`
	TotalAmount   int64            `json:"total_amount"`
	TotalDiscount int64            `json:"total_discount"`
	AmountToPay   int64            `json:"amount_to_pay"`
	Customer      *models.Customer `json:"customer,omitempty"`
}

// Clone returns a copy that shares no mutable state with inv.
func (inv Invoice) Clone() Invoice {
	out := inv
	out.Lines = make([]LineItem, len(inv.Lines))
	for i, l := range inv.Lines {
		if l.Variant != nil {
			v := *l.Variant
			l.Variant = &v
		}
		out.Lines[i] = l
	}
	if inv.Customer != nil {
		c := *inv.Customer
		out.Customer = &c
	}
	return out
}

func CloneAll(invoices []Invoice) []Invoice {
	out := make([]Invoice, len(invoices))
	for i, inv := range invoices {
		out[i] = inv.Clone()
	}
	return out
}

// LineCount is the number of lines across all invoices.
func LineCount(invoices []Invoice) int {
	n := 0
	for _, inv := range invoices {
		n += len(inv.Lines)
	}
	return n
}
