package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/safar/go-pos-register/internal/basket"
	"github.com/safar/go-pos-register/internal/models"
	"github.com/safar/go-pos-register/internal/pricing"
	"github.com/safar/go-pos-register/internal/settlement"
	"github.com/safar/go-pos-register/internal/stock"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ShippingDetails are the recipient and parcel fields of a Ship Order.
// Blank recipient fields are filled from the attached customer.
type ShippingDetails struct {
	RecipientName    string `json:"recipient_name" validate:"required"`
	RecipientPhone   string `json:"recipient_phone" validate:"required"`
	RecipientAddress string `json:"recipient_address" validate:"required"`
	WeightGrams      int    `json:"weight_grams" validate:"gte=0"`
	LengthCm         int    `json:"length_cm" validate:"gte=0"`
	WidthCm          int    `json:"width_cm" validate:"gte=0"`
	HeightCm         int    `json:"height_cm" validate:"gte=0"`
}

type QuickSaleTerms struct {
	Tendered        int64  `json:"tendered"`
	PaymentMethodID string `json:"payment_method_id,omitempty"`
}

type ShipOrderTerms struct {
	Prepaid         int64  `json:"prepaid"`
	PaymentMethodID string `json:"payment_method_id,omitempty"`
	// COD overrides the computed cash-on-delivery flag when set.
	COD *bool `json:"cod,omitempty"`
}

// Settlement holds the figures the operator confirmed.
type Settlement struct {
	QuickSale       *settlement.QuickSale `json:"quick_sale,omitempty"`
	ShipOrder       *settlement.ShipOrder `json:"ship_order,omitempty"`
	PaymentMethodID string                `json:"payment_method_id,omitempty"`
}

func (s Settlement) settled() bool {
	return s.QuickSale != nil || s.ShipOrder != nil
}

// Workflow is one checkout attempt, from validation to commit. It works on
// the invoices as they were when it was opened.
type Workflow struct {
	o          *Orchestrator
	kind       Kind
	state      State
	revision   uint64
	invoices   []basket.Invoice
	totals     pricing.Totals
	shipping   ShippingDetails
	settlement Settlement
}

// Begin opens a checkout workflow and validates the open invoices. shipping
// is only read for KindShipOrder. On a *ValidationError the invoices are
// untouched and the returned workflow is in StateRejected.
func (o *Orchestrator) Begin(ctx context.Context, kind Kind, shipping *ShippingDetails) (*Workflow, error) {
	if kind != KindQuickSale && kind != KindShipOrder {
		return nil, fmt.Errorf("unknown checkout workflow %q", kind)
	}

	w := &Workflow{
		o:        o,
		kind:     kind,
		state:    StateValidating,
		revision: o.cart.Revision(),
		invoices: o.cart.Invoices(),
	}

	if err := w.validate(shipping); err != nil {
		w.state = StateRejected
		o.metrics.outcome(kind, OutcomeRejected)
		o.logger.InfoContext(ctx, "checkout rejected",
			slog.String("workflow", string(kind)),
			slog.String("reason", string(err.Kind)),
		)
		return w, err
	}

	w.totals = pricing.AggregateAll(w.invoices)
	w.state = StateSettling
	return w, nil
}

func (w *Workflow) validate(shipping *ShippingDetails) *ValidationError {
	if basket.LineCount(w.invoices) == 0 {
		return &ValidationError{Kind: KindEmptyBasket}
	}

	if v := stock.Validate(w.invoices); !v.OK {
		return &ValidationError{Kind: KindStockShortfall, Shortfalls: v.Shortfalls}
	}

	if w.kind != KindShipOrder {
		return nil
	}

	details := withRecipientDefaults(shipping, firstCustomer(w.invoices))
	if err := validate.Struct(details); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &ValidationError{Kind: KindInvalidShippingField, Err: err}
		}
		return shippingFieldError(verrs)
	}
	w.shipping = details
	return nil
}

func shippingFieldError(verrs validator.ValidationErrors) *ValidationError {
	missing := make(map[string]string)
	invalid := make(map[string]string)
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing[fe.Field()] = "is required"
			continue
		}
		invalid[fe.Field()] = fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	}
	if len(missing) > 0 {
		return &ValidationError{Kind: KindMissingRecipientField, Fields: missing}
	}
	return &ValidationError{Kind: KindInvalidShippingField, Fields: invalid}
}

func withRecipientDefaults(in *ShippingDetails, c *models.Customer) ShippingDetails {
	var d ShippingDetails
	if in != nil {
		d = *in
	}
	d.RecipientName = strings.TrimSpace(d.RecipientName)
	d.RecipientPhone = strings.TrimSpace(d.RecipientPhone)
	d.RecipientAddress = strings.TrimSpace(d.RecipientAddress)
	if c == nil {
		return d
	}
	if d.RecipientName == "" {
		d.RecipientName = c.Name
	}
	if d.RecipientPhone == "" {
		d.RecipientPhone = c.Phone
	}
	if d.RecipientAddress == "" {
		d.RecipientAddress = c.Address
	}
	return d
}

func (w *Workflow) Kind() Kind {
	return w.kind
}

func (w *Workflow) State() State {
	return w.state
}

// Totals is the aggregate over every invoice, which is what the checkout charges.
func (w *Workflow) Totals() pricing.Totals {
	return w.totals
}

func (w *Workflow) Shipping() ShippingDetails {
	return w.shipping
}

func (w *Workflow) Settlement() Settlement {
	return w.settlement
}

// SettleQuickSale records the tendered amount. An underpayment or an unknown
// payment method keeps the workflow in StateSettling.
func (w *Workflow) SettleQuickSale(ctx context.Context, terms QuickSaleTerms) (settlement.QuickSale, error) {
	if err := w.requireSettling(KindQuickSale); err != nil {
		return settlement.QuickSale{}, err
	}

	method := strings.TrimSpace(terms.PaymentMethodID)
	if err := w.checkPaymentMethod(ctx, method); err != nil {
		return settlement.QuickSale{}, err
	}

	qs, err := settlement.SettleQuickSale(w.totals.AmountToPay, terms.Tendered)
	if err != nil {
		if errors.Is(err, settlement.ErrInsufficientPayment) {
			w.o.metrics.outcome(w.kind, OutcomeRejected)
			return settlement.QuickSale{}, &ValidationError{Kind: KindInsufficientPayment, Err: err}
		}
		return settlement.QuickSale{}, err
	}

	w.settlement = Settlement{QuickSale: &qs, PaymentMethodID: method}
	return qs, nil
}

// SettleShipOrder splits the amount due into prepaid and remaining parts and
// applies an optional COD override. Only a method listed in the registry
// counts as selected.
func (w *Workflow) SettleShipOrder(ctx context.Context, terms ShipOrderTerms) (settlement.ShipOrder, error) {
	if err := w.requireSettling(KindShipOrder); err != nil {
		return settlement.ShipOrder{}, err
	}

	method := strings.TrimSpace(terms.PaymentMethodID)
	if err := w.checkPaymentMethod(ctx, method); err != nil {
		return settlement.ShipOrder{}, err
	}
	so, err := settlement.SettleShipOrder(settlement.ShipOrderInput{
		AmountDue:             w.totals.AmountToPay,
		Prepaid:               terms.Prepaid,
		PaymentMethodSelected: method != "",
	})
	if err != nil {
		return settlement.ShipOrder{}, err
	}
	if terms.COD != nil {
		so, err = so.OverrideCOD(*terms.COD)
		if err != nil {
			return settlement.ShipOrder{}, err
		}
	}

	w.settlement = Settlement{ShipOrder: &so, PaymentMethodID: method}
	return so, nil
}

func (w *Workflow) checkPaymentMethod(ctx context.Context, id string) error {
	err := w.o.checkPaymentMethod(ctx, id)
	var verr *ValidationError
	if errors.As(err, &verr) {
		w.o.metrics.outcome(w.kind, OutcomeRejected)
	}
	return err
}

// Abandon discards the workflow. Only possible before commit starts.
func (w *Workflow) Abandon() error {
	switch w.state {
	case StateValidating, StateRejected, StateSettling:
		w.state = StateIdle
		return nil
	}
	return fmt.Errorf("%w: cannot abandon in %s", ErrInvalidState, w.state)
}

// Commit writes the order, its lines and, for shipped orders, the shipment.
// On success the invoices are reset to one empty draft. A
// *PersistenceError for the order step returns the workflow to
// StateSettling; a *PartialCommitError ends it in StatePartiallyCommitted
// with the invoices left intact.
func (w *Workflow) Commit(ctx context.Context) (*Receipt, error) {
	if w.state != StateSettling {
		return nil, fmt.Errorf("%w: cannot commit in %s", ErrInvalidState, w.state)
	}
	if !w.settlement.settled() {
		return nil, ErrNotSettled
	}
	if w.o.cart.Revision() != w.revision {
		w.state = StateIdle
		return nil, ErrBasketChanged
	}

	w.state = StateCommitting
	receipt, err := w.o.commit(ctx, w)
	if err != nil {
		var partial *PartialCommitError
		if errors.As(err, &partial) {
			w.state = StatePartiallyCommitted
		} else {
			w.state = StateSettling
		}
		return nil, err
	}

	w.state = StateCommitted
	return receipt, nil
}

func (w *Workflow) requireSettling(kind Kind) error {
	if w.state != StateSettling {
		return fmt.Errorf("%w: cannot settle in %s", ErrInvalidState, w.state)
	}
	if w.kind != kind {
		return fmt.Errorf("%w: workflow is %s", ErrWrongWorkflow, w.kind)
	}
	return nil
}

func (w *Workflow) buildOrder(creatorID string, now time.Time) models.Order {
	order := models.Order{
		CreatorID:  creatorID,
		OrderDate:  now,
		Price:      w.totals.AmountToPay,
		Status:     models.OrderStatusPaid,
		IsShipping: w.kind == KindShipOrder,
		Note:       joinNotes(w.invoices),
	}
	if c := firstCustomer(w.invoices); c != nil {
		id := c.ID
		order.CustomerID = &id
	}
	if m := w.settlement.PaymentMethodID; m != "" {
		order.PaymentMethodID = &m
	}
	if w.settlement.ShipOrder != nil {
		order.Status = w.settlement.ShipOrder.OrderStatus
	}
	return order
}

// buildLines emits one order line per line item of every open invoice.
func (w *Workflow) buildLines(orderID string, ids IDGenerator) []models.OrderLine {
	lines := make([]models.OrderLine, 0, basket.LineCount(w.invoices))
	for _, inv := range w.invoices {
		for _, l := range inv.Lines {
			lines = append(lines, models.OrderLine{
				OrderDetailID: ids.LineID(),
				OrderID:       orderID,
				ProductID:     l.ProductID,
				ProductName:   l.Label(),
				InvoiceLabel:  inv.Name,
				Quantity:      l.Quantity,
				UnitPrice:     l.UnitPrice,
				Subtotal:      pricing.LineTotal(l),
			})
		}
	}
	return lines
}

func (w *Workflow) buildShipment(shippingID, orderID string, now time.Time) models.Shipment {
	so := w.settlement.ShipOrder
	return models.Shipment{
		ShippingID:       shippingID,
		OrderID:          orderID,
		RecipientName:    w.shipping.RecipientName,
		RecipientPhone:   w.shipping.RecipientPhone,
		RecipientAddress: w.shipping.RecipientAddress,
		WeightGrams:      w.shipping.WeightGrams,
		LengthCm:         w.shipping.LengthCm,
		WidthCm:          w.shipping.WidthCm,
		HeightCm:         w.shipping.HeightCm,
		CODEnabled:       so.CODEnabled,
		CODAmount:        so.CODAmount(),
		Status:           models.ShipmentStatusNotShipped,
		CreatedAt:        now,
	}
}
