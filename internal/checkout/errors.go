package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/safar/go-pos-register/internal/stock"
)

var (
	ErrInvalidState  = errors.New("operation not allowed in current checkout state")
	ErrBasketChanged = errors.New("invoices changed since checkout was opened")
	ErrNotSettled    = errors.New("checkout has not been settled")
	ErrWrongWorkflow = errors.New("settlement does not match checkout workflow")
)

type ValidationKind string

const (
	KindStockShortfall        ValidationKind = "stock_shortfall"
	KindEmptyBasket           ValidationKind = "empty_basket"
	KindMissingRecipientField ValidationKind = "missing_recipient_field"
	KindInsufficientPayment   ValidationKind = "insufficient_payment"
	KindInvalidShippingField  ValidationKind = "invalid_shipping_field"
	KindInvalidPaymentMethod  ValidationKind = "invalid_payment_method"
)

// ValidationError is a recoverable rejection. Nothing has been written when
// it is returned.
type ValidationError struct {
	Kind       ValidationKind    `json:"kind"`
	Shortfalls []stock.Shortfall `json:"shortfalls,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	Err        error             `json:"-"`
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindStockShortfall:
		parts := make([]string, 0, len(e.Shortfalls))
		for _, s := range e.Shortfalls {
			parts = append(parts, fmt.Sprintf("%s requires %d, %d available", s.ProductID, s.Required, s.Available))
		}
		return "stock shortfall: " + strings.Join(parts, "; ")
	case KindMissingRecipientField, KindInvalidShippingField:
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		if e.Kind == KindMissingRecipientField {
			return "missing recipient fields: " + strings.Join(names, ", ")
		}
		return "invalid shipping fields: " + strings.Join(names, ", ")
	case KindInsufficientPayment:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "insufficient payment"
	case KindEmptyBasket:
		return "no line items in any open invoice"
	case KindInvalidPaymentMethod:
		return fmt.Sprintf("unknown payment method %q", e.Fields["payment_method_id"])
	}
	return string(e.Kind)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PersistenceError is a failed remote write during commit.
type PersistenceError struct {
	Step Step
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Step, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// PartialCommitError is a PersistenceError after the order row already
// exists. The invoices are kept so the operator can reconcile OrderID.
type PartialCommitError struct {
	PersistenceError
	OrderID string
	Steps   []SagaStep
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("order %s partially committed: %s failed: %v", e.OrderID, e.Step, e.Err)
}

func (e *PartialCommitError) Unwrap() error {
	return &e.PersistenceError
}
