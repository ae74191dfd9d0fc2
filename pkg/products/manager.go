package products

import "errors"

var ErrNoSuchProduct = errors.New("products: no such product")
var ErrInsufficientStock = errors.New("products: insufficient stock")

// Manager owns catalog storage.
type Manager interface {
	GetProducts() ([]Product, error)
	GetProduct(id string) (*Product, error)
	CreateProduct(p *Product) error
	UpdateProduct(p *Product) error

	// DecreaseStock atomically reduces stock by quantity and returns the
	// updated product, or ErrInsufficientStock without changing anything.
	DecreaseStock(id string, quantity int) (*Product, error)
}
