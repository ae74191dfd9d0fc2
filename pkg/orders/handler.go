package orders

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/C0kke/FitFashion/pkg/bridge"
	"github.com/C0kke/FitFashion/pkg/worker"
)

// Handler serves the cart and order patterns of the cart RPC queue.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *worker.Responder) {
	r.Handle("get_cart_by_user", h.GetCart)
	r.Handle("add_item_to_cart", h.AddItem)
	r.Handle("remove_item_from_cart", h.RemoveItem)
	r.Handle("process_checkout", h.Checkout)
	r.Handle("get_user_orders", h.GetUserOrders)
	r.Handle("get_all_orders", h.GetAllOrders)
}

func (h *Handler) GetCart(ctx context.Context, data json.RawMessage, token string) (interface{}, error) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.UserID == "" {
		return nil, worker.NewError(http.StatusBadRequest, "userId is required")
	}

	cart, err := h.service.GetCart(ctx, req.UserID)
	if err != nil {
		return nil, serviceError(err)
	}
	return cart, nil
}

func (h *Handler) AddItem(ctx context.Context, data json.RawMessage, token string) (interface{}, error) {
	var req struct {
		UserID    string `json:"userId"`
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.UserID == "" || req.ProductID == "" {
		return nil, worker.NewError(http.StatusBadRequest, "userId and productId are required")
	}
	if req.Quantity == 0 {
		return nil, worker.NewError(http.StatusBadRequest, "quantity must not be 0")
	}

	cart, err := h.service.AddItem(req.UserID, req.ProductID, req.Quantity)
	if err != nil {
		return nil, serviceError(err)
	}
	return cart, nil
}

func (h *Handler) RemoveItem(ctx context.Context, data json.RawMessage, token string) (interface{}, error) {
	var req struct {
		UserID    string `json:"userId"`
		ProductID string `json:"productId"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.UserID == "" || req.ProductID == "" {
		return nil, worker.NewError(http.StatusBadRequest, "userId and productId are required")
	}

	cart, err := h.service.RemoveItem(req.UserID, req.ProductID)
	if err != nil {
		return nil, serviceError(err)
	}
	return cart, nil
}

func (h *Handler) Checkout(ctx context.Context, data json.RawMessage, token string) (interface{}, error) {
	var req struct {
		UserID          string `json:"userId"`
		ShippingAddress string `json:"shippingAddress"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.UserID == "" {
		return nil, worker.NewError(http.StatusBadRequest, "userId is required")
	}
	if req.ShippingAddress == "" {
		return nil, worker.NewError(http.StatusBadRequest, "shippingAddress is required")
	}

	order, err := h.service.Checkout(ctx, req.UserID, req.ShippingAddress)
	if err != nil {
		return nil, serviceError(err)
	}
	return order, nil
}

func (h *Handler) GetUserOrders(ctx context.Context, data json.RawMessage, token string) (interface{}, error) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.UserID == "" {
		return nil, worker.NewError(http.StatusBadRequest, "userId is required")
	}

	out, err := h.service.GetUserOrders(ctx, req.UserID)
	if err != nil {
		return nil, serviceError(err)
	}
	return out, nil
}

func (h *Handler) GetAllOrders(ctx context.Context, data json.RawMessage, token string) (interface{}, error) {
	out, err := h.service.GetAllOrders(ctx)
	if err != nil {
		return nil, serviceError(err)
	}
	return out, nil
}

func serviceError(err error) error {
	switch e := err.(type) {
	case *worker.Error:
		return e
	case *bridge.DomainError:
		// An error the products worker published; keep its status.
		status := e.Status()
		if status == 0 {
			status = http.StatusBadGateway
		}
		return worker.NewError(status, e.Error())
	}

	if err == bridge.ErrTimeout {
		return worker.NewError(http.StatusGatewayTimeout, "products service did not respond")
	}

	switch err {
	case ErrEmptyCart:
		return worker.NewError(http.StatusBadRequest, "cart is empty")
	case ErrNoSuchItem:
		return worker.NewError(http.StatusNotFound, "item not in cart")
	default:
		return worker.NewError(http.StatusInternalServerError, err.Error())
	}
}
