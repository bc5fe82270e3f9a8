package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
	ErrorClassUniqueViolation
	ErrorClassCheckViolation
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03", "57014":
			return ErrorClassTransient
		case "23505":
			return ErrorClassUniqueViolation
		case "23514":
			return ErrorClassCheckViolation
		case "23503", "23502":
			return ErrorClassPermanent
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrCheckViolation    = errors.New("check constraint violated")
)

// StockConstraint is the CHECK that keeps product stock non-negative. The
// order line trigger trips it when a commit would oversell.
const StockConstraint = "products_stock_quantity_check"

// ConstraintError carries the name of the violated constraint so callers can
// tell which field collided.
type ConstraintError struct {
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint %s: %v", e.Constraint, e.Err)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// TranslateError maps constraint violations onto the package's sentinel
// errors, leaving every other error untouched.
func TranslateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch ClassifyError(err) {
	case ErrorClassUniqueViolation:
		return &ConstraintError{Constraint: pqErr.Constraint, Err: ErrDuplicateKey}
	case ErrorClassCheckViolation:
		if pqErr.Constraint == StockConstraint {
			return &ConstraintError{Constraint: pqErr.Constraint, Err: ErrInsufficientStock}
		}
		return &ConstraintError{Constraint: pqErr.Constraint, Err: ErrCheckViolation}
	}
	return err
}
