package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/safar/go-pos-register/internal/cart"
	"github.com/safar/go-pos-register/internal/checkout"
	"github.com/safar/go-pos-register/internal/customer"
	"github.com/safar/go-pos-register/internal/database"
	"github.com/safar/go-pos-register/internal/models"
	"github.com/safar/go-pos-register/internal/pricing"
	"github.com/safar/go-pos-register/internal/settlement"
	"github.com/safar/go-pos-register/internal/stock"
)

func routes(reg *register, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /products", handleSearchProducts(reg))
	mux.HandleFunc("GET /customers", handleSearchCustomers(reg))
	mux.HandleFunc("POST /customers", handleCreateCustomer(reg))
	mux.HandleFunc("GET /payment-methods", handlePaymentMethods(reg))

	mux.HandleFunc("GET /invoices", handleListInvoices(reg))
	mux.HandleFunc("POST /invoices", handleCreateInvoice(reg))
	mux.HandleFunc("DELETE /invoices/{id}", handleDeleteInvoice(reg))
	mux.HandleFunc("POST /invoices/{id}/activate", handleActivateInvoice(reg))

	mux.HandleFunc("POST /invoice/lines", handleAddLine(reg))
	mux.HandleFunc("PATCH /invoice/lines/{index}", handleUpdateLine(reg))
	mux.HandleFunc("DELETE /invoice/lines/{index}", handleRemoveLine(reg))
	mux.HandleFunc("PUT /invoice/note", handleSetNote(reg))
	mux.HandleFunc("PUT /invoice/customer", handleSetCustomer(reg))

	mux.HandleFunc("GET /stock", handleStockCheck(reg))
	mux.HandleFunc("POST /checkout/quick-sale", handleQuickSale(reg))
	mux.HandleFunc("POST /checkout/ship-order", handleShipOrder(reg))

	mux.HandleFunc("GET /orders/{id}", handleGetOrder(reg))
	mux.Handle("GET /metrics", metrics)

	return requestLogging(reg.logger, mux)
}

func handleSearchProducts(reg *register) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := reg.searchLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 100 {
				respondError(w, http.StatusBadRequest, "Invalid limit")
				return
			}
			limit = n
		}

		products, err := reg.products.Search(r.Context(), r.URL.Query().Get("q"), limit)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, products)
	}
}

func handleSearchCustomers(reg *register) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customers, err := reg.customers.Search(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, customers)
	}
}

func handleCreateCustomer(reg *register) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req customer.CreateInput
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		c, err := reg.customers.Create(r.Context(), req)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusCreated, c)
	}
}

func handlePaymentMethods(reg *register) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		methods, err := reg.payments.ListPaymentMethods(r.Context())
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, methods)
	}
}

func handleListInvoices(reg *register) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg.mu.Lock()
		defer reg.mu.Unlock()

		respondJSON(w, http.StatusOK, reg.cart.State())
	}
}

func handleCreateInvoice(reg *register) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg.mu.Lock()
		defer reg.mu.Unlock()

		respondJSON(w, http.StatusCreated, reg.cart.CreateInvoice())
	}
}

func handleDeleteInvoice(reg *register) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid invoice ID")
			return
		}

		reg.mu.Lock()
		defer reg.mu.Unlock()

		if err := reg.cart.DeleteInvoice(id); err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, reg.cart.State())
	}
}

func handleActivateInvoice(reg *register) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid invoice ID")
			return
		}

		reg.mu.Lock()
		defer reg.mu.Unlock()

		if err := reg.cart.SwitchActive(id); err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, reg.cart.Active())
	}
}

func handleAddLine(reg *register) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ProductID string `json:"product_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ProductID) == "" {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		// Lookup reads the store, so the line carries a current stock snapshot.
		product, err := reg.products.Lookup(r.Context(), strings.TrimSpace(req.ProductID))
		if err != nil {
			respondDomainError(w, err)
			return
		}

		reg.mu.Lock()
		defer reg.mu.Unlock()

		inv, err := reg.cart.AddLine(*product)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, inv)
	}
}

func handleUpdateLine(reg *register) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(r.PathValue("index"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid line index")
			return
		}

		var req struct {
			Quantity *int   `json:"quantity"`
			Discount *int64 `json:"discount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Quantity == nil && req.Discount == nil {
			respondError(w, http.StatusBadRequest, "Nothing to update")
			return
		}
		if req.Quantity != nil && (*req.Quantity < 1 || *req.Quantity > cart.MaxQuantity) {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Quantity must be between 1 and %d", cart.MaxQuantity))
			return
		}

		reg.mu.Lock()
		defer reg.mu.Unlock()

		inv := reg.cart.Active()
		if req.Quantity != nil {
			if inv, err = reg.cart.SetQuantity(index, *req.Quantity); err != nil {
				respondDomainError(w, err)
				return
			}
		}
		if req.Discount != nil {
			if inv, err = reg.cart.SetDiscount(index, *req.Discount); err != nil {
				respondDomainError(w, err)
				return
			}
		}

		respondJSON(w, http.StatusOK, inv)
	}
}

func handleRemoveLine(reg *register) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(r.PathValue("index"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid line index")
			return
		}

		reg.mu.Lock()
		defer reg.mu.Unlock()

		inv, err := reg.cart.RemoveLine(index)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, inv)
	}
}

func handleSetNote(reg *register) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Note string `json:"note"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		reg.mu.Lock()
		defer reg.mu.Unlock()

		respondJSON(w, http.StatusOK, reg.cart.SetNote(req.Note))
	}
}

func handleSetCustomer(reg *register) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CustomerID *string `json:"customer_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		var c *models.Customer
		if req.CustomerID != nil {
			found, err := reg.customers.Get(r.Context(), *req.CustomerID)
			if err != nil {
				respondDomainError(w, err)
				return
			}
			c = found
		}

		reg.mu.Lock()
		defer reg.mu.Unlock()

		respondJSON(w, http.StatusOK, reg.cart.SetCustomer(c))
	}
}

func handleStockCheck(reg *register) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg.mu.Lock()
		invoices := reg.cart.Invoices()
		reg.mu.Unlock()

		respondJSON(w, http.StatusOK, struct {
			stock.Verdict
			Totals pricing.Totals `json:"totals"`
		}{
			Verdict: stock.Validate(invoices),
			Totals:  pricing.AggregateAll(invoices),
		})
	}
}

func handleQuickSale(reg *register) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkout.QuickSaleTerms
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		reg.mu.Lock()
		defer reg.mu.Unlock()

		ctx := r.Context()
		wf, err := reg.checkout.Begin(ctx, checkout.KindQuickSale, nil)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		if _, err := wf.SettleQuickSale(ctx, req); err != nil {
			respondDomainError(w, err)
			return
		}

		receipt, err := wf.Commit(ctx)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusCreated, receipt)
	}
}

func handleShipOrder(reg *register) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			checkout.ShippingDetails
			checkout.ShipOrderTerms
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		reg.mu.Lock()
		defer reg.mu.Unlock()

		ctx := r.Context()
		wf, err := reg.checkout.Begin(ctx, checkout.KindShipOrder, &req.ShippingDetails)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		if _, err := wf.SettleShipOrder(ctx, req.ShipOrderTerms); err != nil {
			respondDomainError(w, err)
			return
		}

		receipt, err := wf.Commit(ctx)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusCreated, receipt)
	}
}

func handleGetOrder(reg *register) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := reg.orders.GetOrder(r.Context(), r.PathValue("id"))
		if err != nil {
			respondDomainError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, order)
	}
}

// respondDomainError maps engine errors onto status codes.
func respondDomainError(w http.ResponseWriter, err error) {
	var (
		partial     *checkout.PartialCommitError
		persistence *checkout.PersistenceError
		invalid     *checkout.ValidationError
		duplicate   *customer.DuplicateFieldError
		fieldErrs   validator.ValidationErrors
	)

	switch {
	case errors.As(err, &partial):
		respondJSON(w, http.StatusInternalServerError, map[string]any{
			"error":       partial.Error(),
			"order_id":    partial.OrderID,
			"failed_step": partial.Step,
			"steps":       partial.Steps,
		})
	case errors.As(err, &persistence):
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":       persistence.Error(),
			"failed_step": persistence.Step,
		})
	case errors.As(err, &invalid):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      invalid.Error(),
			"kind":       invalid.Kind,
			"shortfalls": invalid.Shortfalls,
			"fields":     invalid.Fields,
		})
	case errors.As(err, &duplicate):
		respondJSON(w, http.StatusConflict, map[string]any{
			"error": duplicate.Error(),
			"field": duplicate.Field,
		})
	case errors.As(err, &fieldErrs):
		fields := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[strings.ToLower(fe.Field())] = fe.Tag()
		}
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "Invalid input",
			"fields": fields,
		})
	case errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrCustomerNotFound),
		errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, cart.ErrInvoiceNotFound),
		errors.Is(err, cart.ErrLineNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, cart.ErrInvariantViolation),
		errors.Is(err, checkout.ErrBasketChanged):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidProduct),
		errors.Is(err, settlement.ErrNegativeAmount),
		errors.Is(err, settlement.ErrCODNotAllowed):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode JSON response", slog.String("error", err.Error()))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
