package orders

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/C0kke/FitFashion/pkg/bridge"
	"github.com/C0kke/FitFashion/pkg/products"
)

// Caller abstracts the bridge dispatcher so the products client can be
// mocked in tests. *bridge.Dispatcher satisfies it.
type Caller interface {
	Send(ctx context.Context, destination, pattern string, data interface{}, opts ...bridge.SendOption) (json.RawMessage, error)
}

// ProductsClient is the typed RPC client the checkout flow uses to talk
// to the products worker over the broker.
type ProductsClient struct {
	caller Caller
	queue  string
}

func NewProductsClient(caller Caller, queue string) *ProductsClient {
	return &ProductsClient{caller: caller, queue: queue}
}

func (c *ProductsClient) ValidateStock(ctx context.Context, items []products.CartItem) (*products.StockValidation, error) {
	var out products.StockValidation
	if err := c.call(ctx, "validate_stock", items, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ProductsClient) CalculateCart(ctx context.Context, items []products.CartItem) (*products.CartCalculation, error) {
	var out products.CartCalculation
	if err := c.call(ctx, "calculate_cart", items, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ProductsClient) DecreaseStock(ctx context.Context, item products.CartItem) (*products.Product, error) {
	var out products.Product
	payload := map[string]interface{}{
		"productId": item.ProductID,
		"quantity":  item.Quantity,
	}
	if err := c.call(ctx, "decrease_stock", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ProductsClient) call(ctx context.Context, pattern string, data, out interface{}) error {
	raw, err := c.caller.Send(ctx, c.queue, pattern, data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "orders: bad %s response", pattern)
	}
	return nil
}
