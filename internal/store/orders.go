package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-pos-register/internal/database"
	"github.com/safar/go-pos-register/internal/models"
	"github.com/shopspring/decimal"
)

// InsertOrder writes the order header as a single autocommit statement.
func InsertOrder(ctx context.Context, db *sql.DB, order models.Order) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO orders (order_id, customer_id, creator_id, order_date, price, status, is_shipping, payment_method_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		order.OrderID,
		order.CustomerID,
		order.CreatorID,
		order.OrderDate,
		decimal.NewFromInt(order.Price),
		order.Status,
		order.IsShipping,
		order.PaymentMethodID,
		order.Note,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", database.TranslateError(err))
	}
	return nil
}

// InsertOrderLines writes every line in one transaction. The stock trigger
// fires per row, so an oversold product rolls the whole batch back with
// database.ErrInsufficientStock.
func InsertOrderLines(ctx context.Context, db *sql.DB, opts database.TxOptions, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}

	err := database.WithRetry(ctx, db, opts, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO order_lines (order_detail_id, order_id, product_id, product_name, invoice_label, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
		if err != nil {
			return fmt.Errorf("prepare order line insert: %w", err)
		}
		defer stmt.Close()

		for _, line := range lines {
			_, err := stmt.ExecContext(ctx,
				line.OrderDetailID,
				line.OrderID,
				line.ProductID,
				line.ProductName,
				line.InvoiceLabel,
				line.Quantity,
				decimal.NewFromInt(line.UnitPrice),
				decimal.NewFromInt(line.Subtotal),
			)
			if err != nil {
				return fmt.Errorf("insert order line %s: %w", line.OrderDetailID, err)
			}
		}
		return nil
	})
	if err != nil {
		return database.TranslateError(err)
	}
	return nil
}

func InsertShipment(ctx context.Context, db *sql.DB, s models.Shipment) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO shipments (shipping_id, order_id, recipient_name, recipient_phone, recipient_address,
			weight_grams, length_cm, width_cm, height_cm, cod_enabled, cod_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ShippingID,
		s.OrderID,
		s.RecipientName,
		s.RecipientPhone,
		s.RecipientAddress,
		s.WeightGrams,
		s.LengthCm,
		s.WidthCm,
		s.HeightCm,
		s.CODEnabled,
		decimal.NewFromInt(s.CODAmount),
		s.Status,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert shipment: %w", database.TranslateError(err))
	}
	return nil
}

// GetOrder loads an order with whatever lines and shipment were persisted,
// which is how a partially committed order is reconciled.
func GetOrder(ctx context.Context, db *sql.DB, orderID string) (*models.Order, error) {
	order := &models.Order{OrderID: orderID}
	var price decimal.Decimal

	err := db.QueryRowContext(ctx, `
		SELECT customer_id, creator_id, order_date, price, status, is_shipping, payment_method_id, note
		FROM orders
		WHERE order_id = $1`,
		orderID).Scan(
		&order.CustomerID,
		&order.CreatorID,
		&order.OrderDate,
		&price,
		&order.Status,
		&order.IsShipping,
		&order.PaymentMethodID,
		&order.Note,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	order.Price = price.IntPart()

	rows, err := db.QueryContext(ctx, `
		SELECT order_detail_id, order_id, product_id, product_name, invoice_label, quantity, unit_price, subtotal
		FROM order_lines
		WHERE order_id = $1
		ORDER BY invoice_label, product_name, order_detail_id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("get order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line models.OrderLine
		var unitPrice, subtotal decimal.Decimal
		err := rows.Scan(
			&line.OrderDetailID,
			&line.OrderID,
			&line.ProductID,
			&line.ProductName,
			&line.InvoiceLabel,
			&line.Quantity,
			&unitPrice,
			&subtotal,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		line.UnitPrice = unitPrice.IntPart()
		line.Subtotal = subtotal.IntPart()
		order.Lines = append(order.Lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	shipment := &models.Shipment{}
	var codAmount decimal.Decimal
	err = db.QueryRowContext(ctx, `
		SELECT shipping_id, order_id, recipient_name, recipient_phone, recipient_address,
			weight_grams, length_cm, width_cm, height_cm, cod_enabled, cod_amount, status, created_at
		FROM shipments
		WHERE order_id = $1`,
		orderID).Scan(
		&shipment.ShippingID,
		&shipment.OrderID,
		&shipment.RecipientName,
		&shipment.RecipientPhone,
		&shipment.RecipientAddress,
		&shipment.WeightGrams,
		&shipment.LengthCm,
		&shipment.WidthCm,
		&shipment.HeightCm,
		&shipment.CODEnabled,
		&codAmount,
		&shipment.Status,
		&shipment.CreatedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("get shipment: %w", err)
	default:
		shipment.CODAmount = codAmount.IntPart()
		order.Shipment = shipment
	}

	return order, nil
}

// OrderStore adapts the order functions to the checkout engine's store
// contract. Each method is one remote write.
type OrderStore struct {
	db     *sql.DB
	txOpts database.TxOptions
}

func NewOrderStore(db *sql.DB, txOpts database.TxOptions) *OrderStore {
	return &OrderStore{db: db, txOpts: txOpts}
}

func (s *OrderStore) InsertOrder(ctx context.Context, order models.Order) error {
	return InsertOrder(ctx, s.db, order)
}

func (s *OrderStore) InsertOrderLines(ctx context.Context, lines []models.OrderLine) error {
	return InsertOrderLines(ctx, s.db, s.txOpts, lines)
}

func (s *OrderStore) InsertShipment(ctx context.Context, shipment models.Shipment) error {
	return InsertShipment(ctx, s.db, shipment)
}

func (s *OrderStore) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return GetOrder(ctx, s.db, orderID)
}
