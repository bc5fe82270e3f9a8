package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/safar/go-pos-register/internal/database"
	"github.com/safar/go-pos-register/internal/models"
)

const defaultSearchLimit = 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// DuplicateFieldError reports that a customer with the same phone or email
// already exists. The operator recovers by correcting the field.
type DuplicateFieldError struct {
	Field string
	Value string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("a customer with %s %q already exists", e.Field, e.Value)
}

// Directory is the external customer store.
type Directory interface {
	SearchCustomers(ctx context.Context, query string, limit int) ([]models.Customer, error)
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, c models.Customer) (*models.Customer, error)
}

type CreateInput struct {
	Name    string `json:"name" validate:"required,max=255"`
	Phone   string `json:"phone" validate:"required,min=6,max=20"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address"`
}

type Resolver struct {
	dir    Directory
	logger *slog.Logger
}

func NewResolver(dir Directory, logger *slog.Logger) *Resolver {
	return &Resolver{dir: dir, logger: logger}
}

func (r *Resolver) Search(ctx context.Context, query string) ([]models.Customer, error) {
	customers, err := r.dir.SearchCustomers(ctx, query, defaultSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search customers: %w", err)
	}
	return customers, nil
}

func (r *Resolver) Get(ctx context.Context, id string) (*models.Customer, error) {
	c, err := r.dir.GetCustomer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// Create validates and stores a new customer.
func (r *Resolver) Create(ctx context.Context, in CreateInput) (*models.Customer, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Address = strings.TrimSpace(in.Address)

	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	c, err := r.dir.CreateCustomer(ctx, models.Customer{
		Name:    in.Name,
		Phone:   in.Phone,
		Email:   in.Email,
		Address: in.Address,
	})
	if err != nil {
		var cErr *database.ConstraintError
		if errors.As(err, &cErr) && errors.Is(err, database.ErrDuplicateKey) {
			dup := duplicateFor(cErr.Constraint, in)
			r.logger.InfoContext(ctx, "customer create rejected",
				slog.String("field", dup.Field),
			)
			return nil, dup
		}
		return nil, fmt.Errorf("create customer: %w", err)
	}

	r.logger.InfoContext(ctx, "customer created", slog.String("customer_id", c.ID))
	return c, nil
}

func duplicateFor(constraint string, in CreateInput) *DuplicateFieldError {
	if strings.Contains(constraint, "email") {
		return &DuplicateFieldError{Field: "email", Value: in.Email}
	}
	return &DuplicateFieldError{Field: "phone", Value: in.Phone}
}
