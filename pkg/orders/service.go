package orders

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/C0kke/FitFashion/pkg/products"
	"github.com/C0kke/FitFashion/pkg/worker"
)

// ProductsGateway is the slice of the products worker the checkout flow
// depends on.
type ProductsGateway interface {
	ValidateStock(ctx context.Context, items []products.CartItem) (*products.StockValidation, error)
	CalculateCart(ctx context.Context, items []products.CartItem) (*products.CartCalculation, error)
	DecreaseStock(ctx context.Context, item products.CartItem) (*products.Product, error)
}

// Service implements the cart and checkout operations.
type Service struct {
	carts    CartManager
	orders   OrderManager
	products ProductsGateway
}

func NewService(carts CartManager, orders OrderManager, products ProductsGateway) *Service {
	return &Service{
		carts:    carts,
		orders:   orders,
		products: products,
	}
}

// GetCart returns the cart enriched with current catalog prices from the
// products worker. An empty cart skips the price lookup.
func (s *Service) GetCart(ctx context.Context, userID string) (*PricedCart, error) {
	cart, err := s.carts.GetCart(userID)
	if err != nil {
		return nil, err
	}

	priced := &PricedCart{UserID: userID, Items: []products.PricedItem{}}
	if len(cart.Items) == 0 {
		return priced, nil
	}

	calc, err := s.products.CalculateCart(ctx, cart.Items)
	if err != nil {
		return nil, err
	}
	priced.Items = calc.Items
	priced.Total = calc.Total
	return priced, nil
}

func (s *Service) AddItem(userID, productID string, quantity int) (*Cart, error) {
	return s.carts.AddItem(userID, productID, quantity)
}

func (s *Service) RemoveItem(userID, productID string) (*Cart, error) {
	return s.carts.RemoveItem(userID, productID)
}

func (s *Service) GetUserOrders(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.GetOrdersByUser(ctx, userID)
}

func (s *Service) GetAllOrders(ctx context.Context) ([]Order, error) {
	return s.orders.GetAllOrders(ctx)
}

// Checkout turns the user's cart into an order: validate stock against
// the products worker, price the cart, persist the order, decrease stock
// and clear the cart.
func (s *Service) Checkout(ctx context.Context, userID, shippingAddress string) (*Order, error) {
	cart, err := s.carts.GetCart(userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	validation, err := s.products.ValidateStock(ctx, cart.Items)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, worker.NewError(http.StatusConflict, validation.Message)
	}

	calc, err := s.products.CalculateCart(ctx, cart.Items)
	if err != nil {
		return nil, err
	}

	order := &Order{
		ID:              uuid.New().String(),
		UserID:          userID,
		ShippingAddress: shippingAddress,
		Status:          StatusConfirmed,
		Total:           calc.Total,
	}
	for _, item := range calc.Items {
		order.Items = append(order.Items, OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	// Stock decrease and cart cleanup happen after the order exists; a
	// failure here is logged, not rolled back, matching the at-most-once
	// semantics of the original checkout.
	for _, item := range cart.Items {
		if _, err := s.products.DecreaseStock(ctx, item); err != nil {
			log.WithFields(log.Fields{
				"orderId":   order.ID,
				"productId": item.ProductID,
			}).Error("Failed to decrease stock after checkout: ", err)
		}
	}
	if err := s.carts.ClearCart(userID); err != nil {
		log.WithFields(log.Fields{"orderId": order.ID, "userId": userID}).
			Error("Failed to clear cart after checkout: ", err)
	}

	log.WithFields(log.Fields{
		"orderId": order.ID,
		"userId":  userID,
		"total":   order.Total,
	}).Info("Checkout completed")
	return order, nil
}
