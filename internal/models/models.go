package models

import "time"

// All monetary amounts are whole currency units.

type Product struct {
	ID            string    `json:"product_id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Price         int64     `json:"price"`
	StockQuantity int       `json:"stock_quantity"`
	Color         string    `json:"color,omitempty"`
	Size          string    `json:"size,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type PaymentMethod struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Order struct {
	OrderID         string      `json:"order_id"`
	CustomerID      *string     `json:"customer_id"`
	CreatorID       string      `json:"creator_id"`
	OrderDate       time.Time   `json:"order_date"`
	Price           int64       `json:"price"`
	Status          string      `json:"status"`
	IsShipping      bool        `json:"is_shipping"`
	PaymentMethodID *string     `json:"payment_method_id"`
	Note            string      `json:"note,omitempty"`
	Lines           []OrderLine `json:"lines,omitempty"`
	Shipment        *Shipment   `json:"shipment,omitempty"`
}

type OrderLine struct {
	OrderDetailID string `json:"order_detail_id"`
	OrderID       string `json:"order_id"`
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	InvoiceLabel  string `json:"invoice_label"`
	Quantity      int    `json:"quantity"`
	UnitPrice     int64  `json:"unit_price"`
	Subtotal      int64  `json:"subtotal"`
}

type Shipment struct {
	ShippingID       string    `json:"shipping_id"`
	OrderID          string    `json:"order_id"`
	RecipientName    string    `json:"recipient_name"`
	RecipientPhone   string    `json:"recipient_phone"`
	RecipientAddress string    `json:"recipient_address"`
	WeightGrams      int       `json:"weight_grams"`
	LengthCm         int       `json:"length_cm"`
	WidthCm          int       `json:"width_cm"`
	HeightCm         int       `json:"height_cm"`
	CODEnabled       bool      `json:"cod_enabled"`
	CODAmount        int64     `json:"cod_amount"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

const (
	OrderStatusPaid   = "paid"
	OrderStatusUnpaid = "unpaid"
)

const (
	ShipmentStatusNotShipped = "not_shipped"
)
