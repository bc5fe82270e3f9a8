package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/go-pos-register/internal/database"
	"github.com/safar/go-pos-register/internal/models"
)

const customerColumns = `id, name, phone, COALESCE(email, ''), COALESCE(address, '')`

func scanCustomer(row rowScanner) (*models.Customer, error) {
	customer := &models.Customer{}
	err := row.Scan(
		&customer.ID,
		&customer.Name,
		&customer.Phone,
		&customer.Email,
		&customer.Address,
	)
	if err != nil {
		return nil, err
	}
	return customer, nil
}

// CreateCustomer inserts a customer with a fresh id. A phone or email already
// in use surfaces as a *database.ConstraintError wrapping ErrDuplicateKey.
func CreateCustomer(ctx context.Context, db *sql.DB, c models.Customer) (*models.Customer, error) {
	query := `
		INSERT INTO customers (id, name, phone, email, address, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NOW())
		RETURNING ` + customerColumns

	customer, err := scanCustomer(db.QueryRowContext(ctx, query,
		uuid.NewString(), c.Name, c.Phone, c.Email, c.Address))
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", database.TranslateError(err))
	}

	return customer, nil
}

func GetCustomer(ctx context.Context, db *sql.DB, id string) (*models.Customer, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, database.ErrCustomerNotFound
	}

	customer, err := scanCustomer(db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	return customer, nil
}

// SearchCustomers matches name, phone or email.
func SearchCustomers(ctx context.Context, db *sql.DB, query string, limit int) ([]models.Customer, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	rows, err := db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE LOWER(name) LIKE $1 OR phone LIKE $1 OR LOWER(COALESCE(email, '')) LIKE $1
		ORDER BY name, id
		LIMIT $2`,
		pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search customers: %w", err)
	}
	defer rows.Close()

	customers := []models.Customer{}
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, *customer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return customers, nil
}

func ListPaymentMethods(ctx context.Context, db *sql.DB) ([]models.PaymentMethod, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, COALESCE(description, '')
		FROM payment_methods
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	methods := []models.PaymentMethod{}
	for rows.Next() {
		var m models.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name, &m.Description); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		methods = append(methods, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return methods, nil
}

// CustomerDirectory exposes customer reads and creation to the customer resolver.
type CustomerDirectory struct {
	db *sql.DB
}

func NewCustomerDirectory(db *sql.DB) *CustomerDirectory {
	return &CustomerDirectory{db: db}
}

func (d *CustomerDirectory) SearchCustomers(ctx context.Context, query string, limit int) ([]models.Customer, error) {
	return SearchCustomers(ctx, d.db, query, limit)
}

func (d *CustomerDirectory) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	return GetCustomer(ctx, d.db, id)
}

func (d *CustomerDirectory) CreateCustomer(ctx context.Context, c models.Customer) (*models.Customer, error) {
	return CreateCustomer(ctx, d.db, c)
}

func (d *CustomerDirectory) ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	return ListPaymentMethods(ctx, d.db)
}
