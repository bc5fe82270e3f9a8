// Package cart owns the set of draft invoices an operator is building.
//
// The Manager is the only writer of that set. Each operation works on a
// copy of the affected invoice, rederives its totals through the pricing
// package, and only then stores it back, so readers never observe stale
// totals. Everything handed out is a deep copy.
package cart

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/safar/go-pos-register/internal/basket"
	"github.com/safar/go-pos-register/internal/models"
	"github.com/safar/go-pos-register/internal/pricing"
)

var (
	ErrInvariantViolation = errors.New("invariant violation")
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrLineNotFound       = errors.New("line not found")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidProduct     = errors.New("invalid product")
)

// MaxQuantity caps the quantity of a single line.
const MaxQuantity = 1_000_000

// State is the full editor state: every open invoice plus which one is active.
type State struct {
	Invoices []basket.Invoice `json:"invoices"`
	ActiveID int              `json:"active_id"`
}

type Manager struct {
	invoices []basket.Invoice
	active   int
	nextID   int
	rev      uint64
}

// NewManager starts with a single empty invoice.
func NewManager() *Manager {
	m := &Manager{}
	m.Reset()
	return m
}

// Reset discards every invoice and leaves exactly one empty draft.
func (m *Manager) Reset() {
	m.invoices = nil
	m.nextID = 1
	m.appendInvoice()
}

func (m *Manager) appendInvoice() basket.Invoice {
	inv := basket.Invoice{
		ID:    m.nextID,
		Name:  fmt.Sprintf("Invoice %d", m.nextID),
		Lines: []basket.LineItem{},
	}
	m.nextID++
	m.invoices = append(m.invoices, inv)
	m.active = len(m.invoices) - 1
	m.rev++
	return inv.Clone()
}

// CreateInvoice opens a new empty invoice with the next sequential id and makes it active.
func (m *Manager) CreateInvoice() basket.Invoice {
	return m.appendInvoice()
}

// DeleteInvoice removes an invoice. The last remaining invoice cannot be deleted.
func (m *Manager) DeleteInvoice(id int) error {
	idx, err := m.indexOf(id)
	if err != nil {
		return err
	}
	if len(m.invoices) == 1 {
		return fmt.Errorf("%w: cannot delete the last invoice", ErrInvariantViolation)
	}

	m.invoices = append(m.invoices[:idx], m.invoices[idx+1:]...)
	switch {
	case m.active > idx:
		m.active--
	case m.active == idx && m.active >= len(m.invoices):
		m.active = len(m.invoices) - 1
	}
	m.rev++
	return nil
}

func (m *Manager) SwitchActive(id int) error {
	idx, err := m.indexOf(id)
	if err != nil {
		return err
	}
	m.active = idx
	return nil
}

// AddLine adds one unit of p to the active invoice, merging with an existing
// line for the same product. The fetched stock quantity becomes the snapshot
// of every line carrying p, in every invoice.
func (m *Manager) AddLine(p models.Product) (basket.Invoice, error) {
	if p.ID == "" {
		return basket.Invoice{}, fmt.Errorf("%w: missing product id", ErrInvalidProduct)
	}
	if p.Price < 0 {
		return basket.Invoice{}, fmt.Errorf("%w: negative price for %s", ErrInvalidProduct, p.ID)
	}

	m.refreshSnapshot(p.ID, p.StockQuantity)

	return m.mutateActive(func(inv *basket.Invoice) error {
		for i := range inv.Lines {
			if inv.Lines[i].ProductID == p.ID {
				inv.Lines[i].Quantity++
				return nil
			}
		}

		line := basket.LineItem{
			ProductID:     p.ID,
			Name:          p.Name,
			UnitPrice:     p.Price,
			Quantity:      1,
			StockSnapshot: p.StockQuantity,
		}
		if p.Color != "" || p.Size != "" {
			line.Variant = &basket.Variant{Color: p.Color, Size: p.Size}
		}
		inv.Lines = append(inv.Lines, line)
		return nil
	})
}

// SetQuantity rejects qty outside [1, MaxQuantity]. A quantity above the
// stock snapshot is allowed and flagged on the line through ExceedsStock.
func (m *Manager) SetQuantity(lineIndex, qty int) (basket.Invoice, error) {
	if qty < 1 || qty > MaxQuantity {
		return basket.Invoice{}, fmt.Errorf("%w: got %d, must be between 1 and %d", ErrInvalidQuantity, qty, MaxQuantity)
	}
	return m.mutateLine(lineIndex, func(l *basket.LineItem) {
		l.Quantity = qty
	})
}

// SetDiscount clamps the discount into [0, unitPrice×quantity].
func (m *Manager) SetDiscount(lineIndex int, amount int64) (basket.Invoice, error) {
	return m.mutateLine(lineIndex, func(l *basket.LineItem) {
		l.Discount = amount
	})
}

func (m *Manager) RemoveLine(lineIndex int) (basket.Invoice, error) {
	return m.mutateActive(func(inv *basket.Invoice) error {
		if lineIndex < 0 || lineIndex >= len(inv.Lines) {
			return fmt.Errorf("%w: index %d", ErrLineNotFound, lineIndex)
		}
		inv.Lines = append(inv.Lines[:lineIndex], inv.Lines[lineIndex+1:]...)
		return nil
	})
}

func (m *Manager) SetNote(text string) basket.Invoice {
	inv, _ := m.mutateActive(func(inv *basket.Invoice) error {
		inv.Note = strings.TrimSpace(text)
		return nil
	})
	return inv
}

// SetCustomer attaches c to the active invoice; nil detaches.
func (m *Manager) SetCustomer(c *models.Customer) basket.Invoice {
	inv, _ := m.mutateActive(func(inv *basket.Invoice) error {
		if c == nil {
			inv.Customer = nil
			return nil
		}
		cc := *c
		inv.Customer = &cc
		return nil
	})
	return inv
}

func (m *Manager) Active() basket.Invoice {
	return m.invoices[m.active].Clone()
}

func (m *Manager) Invoices() []basket.Invoice {
	return basket.CloneAll(m.invoices)
}

func (m *Manager) State() State {
	return State{
		Invoices: m.Invoices(),
		ActiveID: m.invoices[m.active].ID,
	}
}

// Revision changes whenever invoice content changes. Switching the active
// invoice does not count.
func (m *Manager) Revision() uint64 {
	return m.rev
}

func (m *Manager) indexOf(id int) (int, error) {
	for i, inv := range m.invoices {
		if inv.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %d", ErrInvoiceNotFound, id)
}

func (m *Manager) mutateActive(fn func(inv *basket.Invoice) error) (basket.Invoice, error) {
	draft := m.invoices[m.active].Clone()
	if err := fn(&draft); err != nil {
		return basket.Invoice{}, err
	}

	candidate := make([]basket.Invoice, len(m.invoices))
	copy(candidate, m.invoices)
	candidate[m.active] = draft
	if err := checkAmounts(candidate); err != nil {
		return basket.Invoice{}, err
	}

	clampDiscounts(&draft)
	m.invoices[m.active] = pricing.Recompute(draft)
	m.rev++
	return m.invoices[m.active].Clone(), nil
}

func (m *Manager) mutateLine(lineIndex int, fn func(l *basket.LineItem)) (basket.Invoice, error) {
	return m.mutateActive(func(inv *basket.Invoice) error {
		if lineIndex < 0 || lineIndex >= len(inv.Lines) {
			return fmt.Errorf("%w: index %d", ErrLineNotFound, lineIndex)
		}
		fn(&inv.Lines[lineIndex])
		return nil
	})
}

func (m *Manager) refreshSnapshot(productID string, available int) {
	for i := range m.invoices {
		changed := false
		draft := m.invoices[i].Clone()
		for j := range draft.Lines {
			if draft.Lines[j].ProductID == productID && draft.Lines[j].StockSnapshot != available {
				draft.Lines[j].StockSnapshot = available
				changed = true
			}
		}
		if changed {
			m.invoices[i] = pricing.Recompute(draft)
			m.rev++
		}
	}
}

// checkAmounts rejects line quantities whose gross amount, or the gross sum
// over every open invoice, does not fit in an int64.
func checkAmounts(invoices []basket.Invoice) error {
	var sum int64
	for _, inv := range invoices {
		for _, l := range inv.Lines {
			if l.Quantity > MaxQuantity {
				return fmt.Errorf("%w: %s quantity %d exceeds %d", ErrInvalidQuantity, l.ProductID, l.Quantity, MaxQuantity)
			}
			if l.UnitPrice > 0 && int64(l.Quantity) > math.MaxInt64/l.UnitPrice {
				return fmt.Errorf("%w: %s amount out of range", ErrInvalidQuantity, l.ProductID)
			}
			gross := l.Gross()
			if sum > math.MaxInt64-gross {
				return fmt.Errorf("%w: basket total out of range", ErrInvalidQuantity)
			}
			sum += gross
		}
	}
	return nil
}

// clampDiscounts keeps every discount within [0, gross]. Lowering a quantity
// can push an existing discount over the new gross amount.
func clampDiscounts(inv *basket.Invoice) {
	for i := range inv.Lines {
		l := &inv.Lines[i]
		if l.Discount < 0 {
			l.Discount = 0
		}
		if gross := l.Gross(); l.Discount > gross {
			l.Discount = gross
		}
	}
}
