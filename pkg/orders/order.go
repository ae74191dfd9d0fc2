package orders

import (
	"context"
	"time"
)

const (
	StatusConfirmed = "CONFIRMED"
)

// Order is a confirmed checkout.
type Order struct {
	ID              string `json:"id"`
	UserID          string `json:"userId"`
	ShippingAddress string `json:"shippingAddress"`
	Status          string `json:"status"`

	// Total is in cents.
	Total int64 `json:"total"`

	Items []OrderItem `json:"items"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// OrderItem is one line of an order with the price locked at checkout time.
type OrderItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

// OrderManager owns order persistence.
type OrderManager interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrdersByUser(ctx context.Context, userID string) ([]Order, error)
	GetAllOrders(ctx context.Context) ([]Order, error)
}
