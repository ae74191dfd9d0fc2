package products

import "time"

// Product represents a catalog entry.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`

	// Price is in cents.
	Price int64 `json:"price"`
	Stock int   `json:"stock"`

	ImageURL string `json:"imageUrl,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func (p *Product) GetID() string {
	return p.ID
}

// CartItem is one requested line of a cart sent for validation or pricing.
type CartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// StockValidation reports whether every requested item is available.
type StockValidation struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// PricedItem is one cart line with its catalog price applied.
type PricedItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

// CartCalculation is the priced view of a whole cart.
type CartCalculation struct {
	Items []PricedItem `json:"items"`
	Total int64        `json:"total"`
}
