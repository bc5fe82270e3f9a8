package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/go-pos-register/internal/cart"
	"github.com/safar/go-pos-register/internal/database"
	"github.com/safar/go-pos-register/internal/logger"
	"github.com/safar/go-pos-register/internal/models"
)

var errStoreDown = errors.New("store unavailable")

type fakeStore struct {
	orders    []models.Order
	lines     []models.OrderLine
	shipments []models.Shipment

	failAt    Step
	failErr   error
	blockAt   Step
	orderErrs []error
}

func (s *fakeStore) fail(ctx context.Context, step Step) error {
	if s.blockAt == step {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.failAt == step {
		return s.failErr
	}
	return nil
}

func (s *fakeStore) InsertOrder(ctx context.Context, order models.Order) error {
	if len(s.orderErrs) > 0 {
		err := s.orderErrs[0]
		s.orderErrs = s.orderErrs[1:]
		if err != nil {
			return err
		}
	}
	if err := s.fail(ctx, StepOrder); err != nil {
		return err
	}
	s.orders = append(s.orders, order)
	return nil
}

func (s *fakeStore) InsertOrderLines(ctx context.Context, lines []models.OrderLine) error {
	if err := s.fail(ctx, StepOrderLines); err != nil {
		return err
	}
	s.lines = append(s.lines, lines...)
	return nil
}

func (s *fakeStore) InsertShipment(ctx context.Context, shipment models.Shipment) error {
	if err := s.fail(ctx, StepShipment); err != nil {
		return err
	}
	s.shipments = append(s.shipments, shipment)
	return nil
}

type fakeCache struct {
	calls int
	err   error
}

func (c *fakeCache) Invalidate(ctx context.Context) error {
	c.calls++
	return c.err
}

type fakeMethods struct {
	err error
}

func (m *fakeMethods) ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []models.PaymentMethod{
		{ID: "cash", Name: "Cash"},
		{ID: "card", Name: "Card"},
		{ID: "transfer", Name: "Bank transfer"},
	}, nil
}

// seqIDs hands out predictable identifiers.
type seqIDs struct {
	orders, shipments, lines int
}

func (g *seqIDs) OrderID(at time.Time) (string, error) {
	g.orders++
	return fmt.Sprintf("ORD-%s-%05d", at.Format("20060102"), g.orders), nil
}

func (g *seqIDs) ShippingID(at time.Time) (string, error) {
	g.shipments++
	return fmt.Sprintf("SHP-%s-%05d", at.Format("20060102"), g.shipments), nil
}

func (g *seqIDs) LineID() string {
	g.lines++
	return fmt.Sprintf("line-%d", g.lines)
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type harness struct {
	cart    *cart.Manager
	store   *fakeStore
	cache   *fakeCache
	methods *fakeMethods
	metrics *Metrics
	orch    *Orchestrator
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	if cfg.CreatorID == "" {
		cfg.CreatorID = "register-1"
	}
	h := &harness{
		cart:    cart.NewManager(),
		store:   &fakeStore{},
		cache:   &fakeCache{},
		methods: &fakeMethods{},
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	h.orch = New(h.cart, h.store, h.cache, h.methods, h.metrics, logger.Discard(), cfg,
		WithIDGenerator(&seqIDs{}),
		WithClock(func() time.Time { return fixedNow }),
	)
	return h
}

func (h *harness) add(t *testing.T, p models.Product, qty int, discount int64) {
	t.Helper()
	inv, err := h.cart.AddLine(p)
	require.NoError(t, err)
	idx := len(inv.Lines) - 1
	for i, l := range inv.Lines {
		if l.ProductID == p.ID {
			idx = i
		}
	}
	_, err = h.cart.SetQuantity(idx, qty)
	require.NoError(t, err)
	if discount > 0 {
		_, err = h.cart.SetDiscount(idx, discount)
		require.NoError(t, err)
	}
}

func (h *harness) commits(kind Kind, outcome string) float64 {
	return testutil.ToFloat64(h.metrics.Commits.WithLabelValues(string(kind), outcome))
}

var (
	productA = models.Product{ID: "A", Name: "Blender", Price: 50000, StockQuantity: 10}
	productB = models.Product{ID: "B", Name: "Toaster", Price: 30000, StockQuantity: 10, Color: "White"}
	productC = models.Product{ID: "C", Name: "Fan", Price: 100000, StockQuantity: 10}
)

var shipTo = &ShippingDetails{
	RecipientName:    "Tran Minh",
	RecipientPhone:   "0912345678",
	RecipientAddress: "12 Hang Bac, Hanoi",
	WeightGrams:      1500,
}

func TestQuickSale_CommitsOrderAndLines(t *testing.T) {
	h := newHarness(t, Config{})
	h.add(t, productA, 2, 0)
	h.add(t, productB, 1, 5000)

	w, err := h.orch.Begin(context.Background(), KindQuickSale, nil)
	require.NoError(t, err)
	assert.Equal(t, StateSettling, w.State())
	assert.Equal(t, int64(125000), w.Totals().AmountToPay)

	qs, err := w.SettleQuickSale(context.Background(), QuickSaleTerms{Tendered: 150000})
	require.NoError(t, err)
	assert.Equal(t, int64(25000), qs.Change)

	receipt, err := w.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, w.State())

	require.Len(t, h.store.orders, 1)
	order := h.store.orders[0]
	assert.Equal(t, "ORD-20260314-00001", order.OrderID)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.False(t, order.IsShipping)
	assert.Equal(t, int64(125000), order.Price)
	assert.Equal(t, "register-1", order.CreatorID)
	assert.Nil(t, order.PaymentMethodID)

	require.Len(t, h.store.lines, 2)
	assert.Empty(t, h.store.shipments)
	assert.Equal(t, "Toaster (White)", h.store.lines[1].ProductName)
	assert.Equal(t, int64(25000), h.store.lines[1].Subtotal)

	var sum int64
	for _, l := range h.store.lines {
		assert.Equal(t, order.OrderID, l.OrderID)
		assert.Equal(t, "Invoice 1", l.InvoiceLabel)
		sum += l.Subtotal
	}
	assert.Equal(t, order.Price, sum)

	require.Len(t, receipt.Steps, 2)
	for _, s := range receipt.Steps {
		assert.Equal(t, SagaStepCompleted, s.Status)
	}
	assert.Equal(t, int64(25000), receipt.Settlement.QuickSale.Change)

	invoices := h.cart.Invoices()
	require.Len(t, invoices, 1)
	assert.Empty(t, invoices[0].Lines)
	assert.Equal(t, 1, h.cache.calls)
	assert.Equal(t, 1.0, h.commits(KindQuickSale, OutcomeCommitted))
}

func TestShipOrder_CommitsShipmentWithCOD(t *testing.T) {
	h := newHarness(t, Config{})
	h.add(t, productC, 2, 0)

	w, err := h.orch.Begin(context.Background(), KindShipOrder, shipTo)
	require.NoError(t, err)

	so, err := w.SettleShipOrder(context.Background(), ShipOrderTerms{Prepaid: 50000})
	require.NoError(t, err)
	assert.Equal(t, int64(150000), so.Remaining)
	assert.Equal(t, models.OrderStatusUnpaid, so.OrderStatus)
	assert.True(t, so.CODEligible)

	receipt, err := w.Commit(context.Background())
	require.NoError(t, err)

	require.Len(t, h.store.orders, 1)
	assert.True(t, h.store.orders[0].IsShipping)
	assert.Equal(t, models.OrderStatusUnpaid, h.store.orders[0].Status)
	require.Len(t, h.store.lines, 1)
	require.Len(t, h.store.shipments, 1)

	shipment := h.store.shipments[0]
	assert.Equal(t, "SHP-20260314-00001", shipment.ShippingID)
	assert.Equal(t, h.store.orders[0].OrderID, shipment.OrderID)
	assert.True(t, shipment.CODEnabled)
	assert.Equal(t, int64(150000), shipment.CODAmount)
	assert.Equal(t, models.ShipmentStatusNotShipped, shipment.Status)
	assert.Equal(t, 1500, shipment.WeightGrams)

	require.NotNil(t, receipt.Order.Shipment)
	assert.Len(t, receipt.Steps, 3)
}

func TestShipOrder_PaymentMethodDisablesCOD(t *testing.T) {
	h := newHarness(t, Config{})
	h.add(t, productC, 1, 0)

	w, err := h.orch.Begin(context.Background(), KindShipOrder, shipTo)
	require.NoError(t, err)

	cod := true
	_, err = w.SettleShipOrder(context.Background(), ShipOrderTerms{PaymentMethodID: "transfer", COD: &cod})
	require.Error(t, err)

	so, err := w.SettleShipOrder(context.Background(), ShipOrderTerms{PaymentMethodID: "transfer"})
	require.NoError(t, err)
	assert.False(t, so.CODEnabled)

	_, err = w.Commit(context.Background())
	require.NoError(t, err)

	order := h.store.orders[0]
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	require.NotNil(t, order.PaymentMethodID)
	assert.Equal(t, "transfer", *order.PaymentMethodID)
	assert.False(t, h.store.shipments[0].CODEnabled)
	assert.Zero(t, h.store.shipments[0].CODAmount)
}

func TestShipOrder_ShipmentFailureIsPartialCommit(t *testing.T) {
	h := newHarness(t, Config{})
	h.add(t, productC, 2, 0)
	h.store.failAt = StepShipment
	h.store.failErr = errStoreDown

	w, err := h.orch.Begin(context.Background(), KindShipOrder, shipTo)
	require.NoError(t, err)
	_, err = w.SettleShipOrder(context.Background(), ShipOrderTerms{Prepaid: 50000})
	require.NoError(t, err)

	receipt, err := w.Commit(context.Background())
	require.Error(t, err)
	assert.Nil(t, receipt)

	var partial *PartialCommitError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, h.store.orders[0].OrderID, partial.OrderID)
	assert.Equal(t, StepShipment, partial.Step)
	assert.ErrorIs(t, err, errStoreDown)

	var persistence *PersistenceError
	require.ErrorAs(t, err, &persistence)
	assert.Equal(t, StepShipment, persistence.Step)

	require.Len(t, partial.Steps, 3)
	assert.Equal(t, SagaStepCompleted, partial.Steps[0].Status)
	assert.Equal(t, SagaStepCompleted, partial.Steps[1].Status)
	assert.Equal(t, SagaStepFailed, partial.Steps[2].Status)
	assert.Equal(t, errStoreDown.Error(), partial.Steps[2].Error)

	assert.Equal(t, StatePartiallyCommitted, w.State())
	assert.Len(t, h.cart.Active().Lines, 1)
	assert.Equal(t, 1, h.cache.calls)
	assert.Equal(t, 1.0, h.commits(KindShipOrder, OutcomePartiallyCommitted))

	_, err = w.Commit(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, w.Abandon(), ErrInvalidState)
}

func TestCommit_OrderLinesFailureSkipsShipment(t *testing.T) {
	h := newHarness(t, Config{})
	h.add(t, productA, 1, 0)
	h.store.failAt = StepOrderLines
	h.store.failErr = &database.ConstraintError{Constraint: "products_stock_quantity_check", Err: database.ErrInsufficientStock}

	w, err := h.orch.Begin(context.Background(), KindShipOrder, shipTo)
	require.NoError(t, err)
	_, err = w.SettleShipOrder(context.Background(), ShipOrderTerms{})
	require.NoError(t, err)

	_, err = w.Commit(context.Background())

	var partial *PartialCommitError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, StepOrderLines, partial.Step)
	assert.ErrorIs(t, err, database.ErrInsufficientStock)
	assert.Equal(t, SagaStepSkipped, partial.Steps[2].Status)
	assert.Empty(t, h.store.shipments)
	assert.Zero(t, h.cache.calls)
	assert.Len(t, h.cart.Active().Lines, 1)
}

func TestCommit_OrderFailureIsRetryable(t *testing.T) {
	h := newHarness(t, Config{})
	h.add(t, productA, 1, 0)
	h.store.failAt = StepOrder
	h.store.failErr = errStoreDown

	w, err := h.orch.Begin(context.Background(), KindQuickSale, nil)
	require.NoError(t, err)
	_, err = w.SettleQuickSale(context.Background(), QuickSaleTerms{Tendered: 50000})
	require.NoError(t, err)

	_, err = w.Commit(context.Background())

	var persistence *PersistenceError
	require.ErrorAs(t, err, &persistence)
	assert.Equal(t, StepOrder, persistence.Step)
	var partial *PartialCommitError
	assert.False(t, errors.As(err, &partial))
	assert.Equal(t, StateSettling, w.State())
	assert.Empty(t, h.store.orders)
	assert.Empty(t, h.store.lines)
	assert.Equal(t, 1.0, h.commits(KindQuickSale, OutcomeFailed))

	h.store.failAt = ""
	_, err = w.Commit(context.Background())
	require.NoError(t, err)
	assert.Len(t, h.store.orders, 1)
	assert.Equal(t, StateCommitted, w.State())
}

func TestCommit_RegeneratesCollidingOrderID(t *testing.T) {
	dup := &database.ConstraintError{Constraint: "orders_pkey", Err: database.ErrDuplicateKey}

	h := newHarness(t, Config{OrderIDAttempts: 3})
	h.add(t, productA, 1, 0)
	h.store.orderErrs = []error{dup, dup}

	w, err := h.orch.Begin(context.Background(), KindQuickSale, nil)
	require.NoError(t, err)
	_, err = w.SettleQuickSale(context.Background(), QuickSaleTerms{Tendered: 50000})
	require.NoError(t, err)

	receipt, err := w.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ORD-20260314-00003", receipt.Order.OrderID)
	assert.Equal(t, receipt.Order.OrderID, h.store.lines[0].OrderID)

	h = newHarness(t, Config{OrderIDAttempts: 1})
	h.add(t, productA, 1, 0)
	h.store.orderErrs = []error{dup}

	w, err = h.orch.Begin(context.Background(), KindQuickSale, nil)
	require.NoError(t, err)
	_, err = w.SettleQuickSale(context.Background(), QuickSaleTerms{Tendered: 50000})
	require.NoError(t, err)

	_, err = w.Commit(context.Background())
	assert.ErrorIs(t, err, database.ErrDuplicateKey)
	assert.Empty(t, h.store.orders)
}

func TestCommit_StepTimeout(t *testing.T) {
	h := newHarness(t, Config{StepTimeout: 20 * time.Millisecond})
	h.add(t, productA, 1, 0)
	h.store.blockAt = StepOrderLines

	w, err := h.orch.Begin(context.Background(), KindQuickSale, nil)
	require.NoError(t, err)
	_, err = w.SettleQuickSale(context.Background(), QuickSaleTerms{Tendered: 50000})
	require.NoError(t, err)

	_, err = w.Commit(context.Background())

	var partial *PartialCommitError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, StepOrderLines, partial.Step)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCommit_RowCountsAcrossInvoices(t *testing.T) {
	h := newHarness(t, Config{})
	h.add(t, productA, 1, 0)
	h.cart.SetNote("gift wrap")
	h.cart.CreateInvoice()
	h.cart.SetCustomer(&models.Customer{ID: "c-42", Name: "Le Hoa", Phone: "0987654321", Address: "5 Ly Thai To"})
	h.add(t, productB, 2, 0)
	h.add(t, productC, 1, 10000)
	h.cart.SetNote("call first")
	h.cart.CreateInvoice()

	w, err := h.orch.Begin(context.Background(), KindShipOrder, &ShippingDetails{})
	require.NoError(t, err)
	assert.Equal(t, "Le Hoa", w.Shipping().RecipientName)
	assert.Equal(t, "5 Ly Thai To", w.Shipping().RecipientAddress)

	_, err = w.SettleShipOrder(context.Background(), ShipOrderTerms{Prepaid: 500000})
	require.NoError(t, err)
	_, err = w.Commit(context.Background())
	require.NoError(t, err)

	require.Len(t, h.store.orders, 1)
	require.Len(t, h.store.lines, 3)
	require.Len(t, h.store.shipments, 1)

	order := h.store.orders[0]
	assert.Equal(t, "gift wrap; call first", order.Note)
	require.NotNil(t, order.CustomerID)
	assert.Equal(t, "c-42", *order.CustomerID)
	assert.Equal(t, int64(50000+60000+90000), order.Price)
	assert.Equal(t, models.OrderStatusPaid, order.Status)

	assert.Equal(t, "Invoice 1", h.store.lines[0].InvoiceLabel)
	assert.Equal(t, "Invoice 2", h.store.lines[2].InvoiceLabel)

	ids := map[string]bool{}
	for _, l := range h.store.lines {
		ids[l.OrderDetailID] = true
	}
	assert.Len(t, ids, 3)

	require.Len(t, h.cart.Invoices(), 1)
}

func TestBegin_Rejections(t *testing.T) {
	p101 := models.Product{ID: "P101", Name: "Rice cooker", Price: 100000, StockQuantity: 5}

	tests := []struct {
		name  string
		setup func(t *testing.T, h *harness)
		kind  Kind
		ship  *ShippingDetails
		want  ValidationKind
	}{
		{
			name:  "empty basket",
			setup: func(t *testing.T, h *harness) {},
			kind:  KindQuickSale,
			want:  KindEmptyBasket,
		},
		{
			name: "shortfall across invoices",
			setup: func(t *testing.T, h *harness) {
				h.add(t, p101, 3, 0)
				h.cart.CreateInvoice()
				h.add(t, p101, 3, 0)
			},
			kind: KindQuickSale,
			want: KindStockShortfall,
		},
		{
			name: "missing recipient",
			setup: func(t *testing.T, h *harness) {
				h.add(t, productA, 1, 0)
			},
			kind: KindShipOrder,
			ship: &ShippingDetails{RecipientName: "Tran Minh"},
			want: KindMissingRecipientField,
		},
		{
			name: "negative parcel size",
			setup: func(t *testing.T, h *harness) {
				h.add(t, productA, 1, 0)
			},
			kind: KindShipOrder,
			ship: &ShippingDetails{RecipientName: "a", RecipientPhone: "b", RecipientAddress: "c", HeightCm: -1},
			want: KindInvalidShippingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{})
			tt.setup(t, h)
			before := h.cart.Invoices()

			w, err := h.orch.Begin(context.Background(), tt.kind, tt.ship)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.want, verr.Kind)
			assert.Equal(t, StateRejected, w.State())
			assert.Equal(t, before, h.cart.Invoices())
			assert.Empty(t, h.store.orders)
			assert.Equal(t, 1.0, h.commits(tt.kind, OutcomeRejected))
		})
	}
}

func TestBegin_ShortfallDetail(t *testing.T) {
	h := newHarness(t, Config{})
	p101 := models.Product{ID: "P101", Name: "Rice cooker", Price: 100000, StockQuantity: 5}
	h.add(t, p101, 3, 0)
	h.cart.CreateInvoice()
	h.add(t, p101, 3, 0)

	_, err := h.orch.Begin(context.Background(), KindShipOrder, shipTo)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Shortfalls, 1)
	assert.Equal(t, 6, verr.Shortfalls[0].Required)
	assert.Equal(t, 5, verr.Shortfalls[0].Available)
	assert.Contains(t, verr.Error(), "P101 requires 6, 5 available")
}

func TestMissingRecipientFieldsNamed(t *testing.T) {
	h := newHarness(t, Config{})
	h.add(t, productA, 1, 0)

	_, err := h.orch.Begin(context.Background(), KindShipOrder, nil)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{
		"recipient_name":    "is required",
		"recipient_phone":   "is required",
		"recipient_address": "is required",
	}, verr.Fields)
}

func TestQuickSale_InsufficientPaymentWritesNothing(t *testing.T) {
	h := newHarness(t, Config{})
	h.add(t, productA, 1, 0)

	w, err := h.orch.Begin(context.Background(), KindQuickSale, nil)
	require.NoError(t, err)

	_, err = w.SettleQuickSale(context.Background(), QuickSaleTerms{Tendered: 49999})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindInsufficientPayment, verr.Kind)
	assert.Equal(t, StateSettling, w.State())

	_, err = w.Commit(context.Background())
	assert.ErrorIs(t, err, ErrNotSettled)
	assert.Empty(t, h.store.orders)
	assert.Len(t, h.cart.Active().Lines, 1)
}

func TestWorkflowGuards(t *testing.T) {
	h := newHarness(t, Config{})
	h.add(t, productA, 1, 0)

	w, err := h.orch.Begin(context.Background(), KindQuickSale, nil)
	require.NoError(t, err)

	_, err = w.SettleShipOrder(context.Background(), ShipOrderTerms{})
	assert.ErrorIs(t, err, ErrWrongWorkflow)

	_, err = w.SettleQuickSale(context.Background(), QuickSaleTerms{Tendered: 50000})
	require.NoError(t, err)

	_, err = h.cart.AddLine(productB)
	require.NoError(t, err)
	_, err = w.Commit(context.Background())
	assert.ErrorIs(t, err, ErrBasketChanged)
	assert.Equal(t, StateIdle, w.State())
	assert.Empty(t, h.store.orders)

	w, err = h.orch.Begin(context.Background(), KindQuickSale, nil)
	require.NoError(t, err)
	require.NoError(t, w.Abandon())
	_, err = w.Commit(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = h.orch.Begin(context.Background(), Kind("layaway"), nil)
	assert.Error(t, err)
}

func TestCommit_CacheFailureDoesNotFailCommit(t *testing.T) {
	h := newHarness(t, Config{})
	h.cache.err = errors.New("redis down")
	h.add(t, productA, 1, 0)

	w, err := h.orch.Begin(context.Background(), KindQuickSale, nil)
	require.NoError(t, err)
	_, err = w.SettleQuickSale(context.Background(), QuickSaleTerms{Tendered: 50000})
	require.NoError(t, err)

	_, err = w.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, h.cache.calls)
}

func TestSettle_UnknownPaymentMethodRejected(t *testing.T) {
	h := newHarness(t, Config{})
	h.add(t, productC, 1, 0)
	ctx := context.Background()

	w, err := h.orch.Begin(ctx, KindShipOrder, shipTo)
	require.NoError(t, err)

	_, err = w.SettleShipOrder(ctx, ShipOrderTerms{PaymentMethodID: "no-such-method"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindInvalidPaymentMethod, verr.Kind)
	assert.Equal(t, "no-such-method", verr.Fields["payment_method_id"])
	assert.Equal(t, StateSettling, w.State())
	assert.Equal(t, 1.0, h.commits(KindShipOrder, OutcomeRejected))

	_, err = w.Commit(ctx)
	assert.ErrorIs(t, err, ErrNotSettled)
	assert.Empty(t, h.store.orders)

	so, err := w.SettleShipOrder(ctx, ShipOrderTerms{})
	require.NoError(t, err)
	assert.True(t, so.CODEnabled)
	assert.Equal(t, models.OrderStatusUnpaid, so.OrderStatus)

	_, err = w.Commit(ctx)
	require.NoError(t, err)
	assert.Nil(t, h.store.orders[0].PaymentMethodID)
}

func TestSettle_QuickSaleChecksPaymentMethod(t *testing.T) {
	h := newHarness(t, Config{})
	h.add(t, productA, 1, 0)
	ctx := context.Background()

	w, err := h.orch.Begin(ctx, KindQuickSale, nil)
	require.NoError(t, err)

	_, err = w.SettleQuickSale(ctx, QuickSaleTerms{Tendered: 50000, PaymentMethodID: "voucher"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindInvalidPaymentMethod, verr.Kind)

	h.methods.err = errStoreDown
	_, err = w.SettleQuickSale(ctx, QuickSaleTerms{Tendered: 50000, PaymentMethodID: "card"})
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, StateSettling, w.State())

	h.methods.err = nil
	_, err = w.SettleQuickSale(ctx, QuickSaleTerms{Tendered: 50000, PaymentMethodID: " card "})
	require.NoError(t, err)

	receipt, err := w.Commit(ctx)
	require.NoError(t, err)
	require.NotNil(t, receipt.Order.PaymentMethodID)
	assert.Equal(t, "card", *receipt.Order.PaymentMethodID)
}
