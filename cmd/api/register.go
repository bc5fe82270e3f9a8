package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/safar/go-pos-register/internal/cart"
	"github.com/safar/go-pos-register/internal/checkout"
	"github.com/safar/go-pos-register/internal/customer"
	"github.com/safar/go-pos-register/internal/models"
)

type productFinder interface {
	Search(ctx context.Context, query string, limit int) ([]models.Product, error)
	Lookup(ctx context.Context, id string) (*models.Product, error)
}

type customerFinder interface {
	Search(ctx context.Context, query string) ([]models.Customer, error)
	Get(ctx context.Context, id string) (*models.Customer, error)
	Create(ctx context.Context, in customer.CreateInput) (*models.Customer, error)
}

type paymentMethodLister interface {
	ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error)
}

type orderReader interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
}

// register is the single operator station served by this process. Every
// action that touches the invoices holds mu, so operator actions are applied
// one at a time.
type register struct {
	mu          sync.Mutex
	cart        *cart.Manager
	checkout    *checkout.Orchestrator
	products    productFinder
	customers   customerFinder
	payments    paymentMethodLister
	orders      orderReader
	searchLimit int
	logger      *slog.Logger
}
