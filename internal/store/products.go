package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/go-pos-register/internal/database"
	"github.com/safar/go-pos-register/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, sku, name, price, stock_quantity, COALESCE(color, ''), COALESCE(size, ''), updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	product := &models.Product{}
	var price decimal.Decimal

	err := row.Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&price,
		&product.StockQuantity,
		&product.Color,
		&product.Size,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Price = price.IntPart()
	return product, nil
}

func CreateProduct(ctx context.Context, db *sql.DB, p models.Product) (*models.Product, error) {
	query := `
		INSERT INTO products (id, sku, name, price, stock_quantity, color, size, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NOW(), NOW())
		RETURNING ` + productColumns

	product, err := scanProduct(db.QueryRowContext(ctx, query,
		p.ID, p.SKU, p.Name, decimal.NewFromInt(p.Price), p.StockQuantity, p.Color, p.Size))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", database.TranslateError(err))
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// SearchProducts matches the query against name and SKU, case-insensitively.
// Every row carries the stock quantity as of this read.
func SearchProducts(ctx context.Context, db *sql.DB, query string, limit int) ([]models.Product, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	rows, err := db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE LOWER(name) LIKE $1 OR LOWER(sku) LIKE $1
		ORDER BY name, id
		LIMIT $2`,
		pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// ProductSource exposes product reads to the catalog lookup.
type ProductSource struct {
	db *sql.DB
}

func NewProductSource(db *sql.DB) *ProductSource {
	return &ProductSource{db: db}
}

func (s *ProductSource) SearchProducts(ctx context.Context, query string, limit int) ([]models.Product, error) {
	return SearchProducts(ctx, s.db, query, limit)
}

func (s *ProductSource) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return GetProduct(ctx, s.db, id)
}
