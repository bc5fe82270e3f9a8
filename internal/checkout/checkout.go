// Package checkout turns the open invoices into persisted records.
//
// A commit is three separate writes issued in a fixed order: the order row,
// every order line, then the shipment for shipped orders. There is no
// surrounding transaction. A failure of the first write leaves nothing behind
// and the operator may retry; a failure of a later write leaves the order in
// the store and ends the workflow in StatePartiallyCommitted.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/safar/go-pos-register/internal/basket"
	"github.com/safar/go-pos-register/internal/database"
	"github.com/safar/go-pos-register/internal/models"
	"github.com/safar/go-pos-register/internal/pricing"
)

type Kind string

const (
	KindQuickSale Kind = "quick_sale"
	KindShipOrder Kind = "ship_order"
)

type State string

const (
	StateIdle               State = "idle"
	StateValidating         State = "validating"
	StateRejected           State = "rejected"
	StateSettling           State = "settling"
	StateCommitting         State = "committing"
	StateCommitted          State = "committed"
	StatePartiallyCommitted State = "partially_committed"
)

// Store performs the three commit writes. Each call is one remote operation.
type Store interface {
	InsertOrder(ctx context.Context, order models.Order) error
	InsertOrderLines(ctx context.Context, lines []models.OrderLine) error
	InsertShipment(ctx context.Context, shipment models.Shipment) error
}

// Cart is the invoice set a checkout reads and, on success, resets.
type Cart interface {
	Invoices() []basket.Invoice
	Revision() uint64
	Reset()
}

// PaymentMethods is the registry a selected payment method must appear in.
type PaymentMethods interface {
	ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error)
}

// CacheInvalidator drops cached stock snapshots once stock has moved.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type Config struct {
	CreatorID       string
	StepTimeout     time.Duration
	OrderIDAttempts int
}

type Orchestrator struct {
	cart    Cart
	store   Store
	cache   CacheInvalidator
	methods PaymentMethods
	ids     IDGenerator
	metrics *Metrics
	logger  *slog.Logger
	cfg     Config
	now     func() time.Time
}

type Option func(*Orchestrator)

func WithIDGenerator(ids IDGenerator) Option {
	return func(o *Orchestrator) { o.ids = ids }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New builds an orchestrator. cache may be nil.
func New(c Cart, store Store, cache CacheInvalidator, methods PaymentMethods, metrics *Metrics, logger *slog.Logger, cfg Config, opts ...Option) *Orchestrator {
	if cfg.OrderIDAttempts < 1 {
		cfg.OrderIDAttempts = 1
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	o := &Orchestrator{
		cart:    c,
		store:   store,
		cache:   cache,
		methods: methods,
		ids:     RandomIDs{},
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// checkPaymentMethod rejects an id the registry does not list. An empty id
// means no method was selected.
func (o *Orchestrator) checkPaymentMethod(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	methods, err := o.methods.ListPaymentMethods(ctx)
	if err != nil {
		return fmt.Errorf("list payment methods: %w", err)
	}
	for _, m := range methods {
		if m.ID == id {
			return nil
		}
	}
	return &ValidationError{
		Kind:   KindInvalidPaymentMethod,
		Fields: map[string]string{"payment_method_id": id},
	}
}

// Receipt describes a fully committed checkout.
type Receipt struct {
	Kind       Kind           `json:"workflow"`
	Order      models.Order   `json:"order"`
	Settlement Settlement     `json:"settlement"`
	Totals     pricing.Totals `json:"totals"`
	Steps      []SagaStep     `json:"steps"`
}

// commit runs the write sequence for a settled workflow.
func (o *Orchestrator) commit(ctx context.Context, w *Workflow) (*Receipt, error) {
	now := o.now()
	steps := newLedger(w.kind == KindShipOrder)
	order := w.buildOrder(o.cfg.CreatorID, now)

	log := o.logger.With(slog.String("workflow", string(w.kind)))
	log.InfoContext(ctx, "commit started",
		slog.Int64("amount", order.Price),
		slog.Int("lines", basket.LineCount(w.invoices)),
	)

	err := o.runStep(ctx, steps, StepOrder, func(ctx context.Context) error {
		return o.insertOrder(ctx, &order, now)
	})
	if err != nil {
		steps.skipPending()
		o.metrics.outcome(w.kind, OutcomeFailed)
		log.ErrorContext(ctx, "commit failed before order was written", slog.String("error", err.Error()))
		return nil, &PersistenceError{Step: StepOrder, Err: err}
	}
	log = log.With(slog.String("order_id", order.OrderID))

	lines := w.buildLines(order.OrderID, o.ids)
	err = o.runStep(ctx, steps, StepOrderLines, func(ctx context.Context) error {
		return o.store.InsertOrderLines(ctx, lines)
	})
	if err != nil {
		return nil, o.partial(ctx, log, w, order.OrderID, StepOrderLines, err, steps, false)
	}
	order.Lines = lines

	if w.kind == KindShipOrder {
		var shipment models.Shipment
		err = o.runStep(ctx, steps, StepShipment, func(ctx context.Context) error {
			id, err := o.ids.ShippingID(now)
			if err != nil {
				return err
			}
			shipment = w.buildShipment(id, order.OrderID, now)
			return o.store.InsertShipment(ctx, shipment)
		})
		if err != nil {
			return nil, o.partial(ctx, log, w, order.OrderID, StepShipment, err, steps, true)
		}
		order.Shipment = &shipment
	}

	o.cart.Reset()
	o.invalidate(ctx, log)
	o.metrics.outcome(w.kind, OutcomeCommitted)
	log.InfoContext(ctx, "commit completed")

	return &Receipt{
		Kind:       w.kind,
		Order:      order,
		Settlement: w.settlement,
		Totals:     w.totals,
		Steps:      steps.snapshot(),
	}, nil
}

// insertOrder writes the order row, drawing a fresh id when the previous one
// collided with an existing order.
func (o *Orchestrator) insertOrder(ctx context.Context, order *models.Order, now time.Time) error {
	for attempt := 1; ; attempt++ {
		id, err := o.ids.OrderID(now)
		if err != nil {
			return err
		}
		order.OrderID = id

		err = o.store.InsertOrder(ctx, *order)
		if err == nil || !errors.Is(err, database.ErrDuplicateKey) || attempt >= o.cfg.OrderIDAttempts {
			return err
		}
		o.logger.WarnContext(ctx, "order id collision",
			slog.String("order_id", id),
			slog.Int("attempt", attempt),
		)
	}
}

func (o *Orchestrator) runStep(ctx context.Context, steps ledger, name Step, fn func(ctx context.Context) error) error {
	stepCtx, cancel := o.stepContext(ctx)
	defer cancel()

	start := time.Now()
	err := fn(stepCtx)
	elapsed := time.Since(start).Seconds()

	step := steps.step(name)
	if err != nil {
		step.Fail(err, o.now())
		o.metrics.observeStep(name, SagaStepFailed, elapsed)
		return err
	}
	step.Complete(o.now())
	o.metrics.observeStep(name, SagaStepCompleted, elapsed)
	return nil
}

func (o *Orchestrator) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.StepTimeout > 0 {
		return context.WithTimeout(ctx, o.cfg.StepTimeout)
	}
	return context.WithCancel(ctx)
}

func (o *Orchestrator) partial(ctx context.Context, log *slog.Logger, w *Workflow, orderID string, step Step, err error, steps ledger, linesWritten bool) error {
	steps.skipPending()
	if linesWritten {
		o.invalidate(ctx, log)
	}
	o.metrics.outcome(w.kind, OutcomePartiallyCommitted)
	log.ErrorContext(ctx, "commit partially applied",
		slog.String("failed_step", string(step)),
		slog.String("error", err.Error()),
	)
	return &PartialCommitError{
		PersistenceError: PersistenceError{Step: step, Err: err},
		OrderID:          orderID,
		Steps:            steps.snapshot(),
	}
}

// invalidate flushes the catalog cache. Failures are logged; stale entries
// still expire with the cache TTL.
func (o *Orchestrator) invalidate(ctx context.Context, log *slog.Logger) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Invalidate(ctx); err != nil {
		log.WarnContext(ctx, "catalog cache invalidation failed", slog.String("error", err.Error()))
	}
}

func joinNotes(invoices []basket.Invoice) string {
	var notes []string
	for _, inv := range invoices {
		if n := strings.TrimSpace(inv.Note); n != "" {
			notes = append(notes, n)
		}
	}
	return strings.Join(notes, "; ")
}

func firstCustomer(invoices []basket.Invoice) *models.Customer {
	for _, inv := range invoices {
		if inv.Customer != nil {
			return inv.Customer
		}
	}
	return nil
}
