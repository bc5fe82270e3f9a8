// Package settlement computes what the customer pays at checkout.
package settlement

import (
	"errors"
	"fmt"

	"github.com/safar/go-pos-register/internal/models"
)

var (
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrNegativeAmount      = errors.New("amount must not be negative")
	ErrCODNotAllowed       = errors.New("cash on delivery is not allowed once the order is settled")
)

type QuickSale struct {
	AmountDue int64 `json:"amount_due"`
	Tendered  int64 `json:"tendered"`
	Change    int64 `json:"change"`
}

// SettleQuickSale requires full payment up front.
func SettleQuickSale(amountDue, tendered int64) (QuickSale, error) {
	if amountDue < 0 || tendered < 0 {
		return QuickSale{}, ErrNegativeAmount
	}
	if tendered < amountDue {
		return QuickSale{}, fmt.Errorf("%w: tendered %d, due %d", ErrInsufficientPayment, tendered, amountDue)
	}
	return QuickSale{
		AmountDue: amountDue,
		Tendered:  tendered,
		Change:    tendered - amountDue,
	}, nil
}

type ShipOrderInput struct {
	AmountDue             int64
	Prepaid               int64
	PaymentMethodSelected bool
}

type ShipOrder struct {
	AmountDue   int64  `json:"amount_due"`
	Prepaid     int64  `json:"prepaid"`
	Remaining   int64  `json:"remaining"`
	OrderStatus string `json:"order_status"`
	CODEligible bool   `json:"cod_eligible"`
	CODEnabled  bool   `json:"cod_enabled"`
}

// Settled reports whether the order is paid through prepayment or a chosen
// payment method, which rules out cash on delivery.
func (s ShipOrder) Settled() bool {
	return !s.CODEligible
}

// CODAmount is what the carrier collects at delivery.
func (s ShipOrder) CODAmount() int64 {
	if !s.CODEnabled {
		return 0
	}
	return s.Remaining
}

// SettleShipOrder splits the amount due into prepaid and remaining parts.
// COD starts enabled whenever it is eligible.
func SettleShipOrder(in ShipOrderInput) (ShipOrder, error) {
	if in.AmountDue < 0 || in.Prepaid < 0 {
		return ShipOrder{}, ErrNegativeAmount
	}

	remaining := in.AmountDue - in.Prepaid
	if remaining < 0 {
		remaining = 0
	}

	settled := in.Prepaid >= in.AmountDue || in.PaymentMethodSelected

	status := models.OrderStatusUnpaid
	if settled {
		status = models.OrderStatusPaid
	}

	return ShipOrder{
		AmountDue:   in.AmountDue,
		Prepaid:     in.Prepaid,
		Remaining:   remaining,
		OrderStatus: status,
		CODEligible: !settled,
		CODEnabled:  !settled,
	}, nil
}

// OverrideCOD lets the operator switch COD off, or back on while it is still eligible.
func (s ShipOrder) OverrideCOD(enabled bool) (ShipOrder, error) {
	if enabled && !s.CODEligible {
		return s, ErrCODNotAllowed
	}
	s.CODEnabled = enabled
	return s, nil
}
