package products

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/C0kke/FitFashion/pkg/worker"
)

// Handler serves the catalog patterns of the products queue.
type Handler struct {
	manager Manager
}

func NewHandler(manager Manager) *Handler {
	return &Handler{manager: manager}
}

// Register binds every catalog pattern to the responder.
func (h *Handler) Register(r *worker.Responder) {
	r.Handle("find_all_products", h.FindAll)
	r.Handle("find_one_product", h.FindOne)
	r.Handle("create_product", h.Create)
	r.Handle("update_product", h.Update)
	r.Handle("decrease_stock", h.DecreaseStock)
	r.Handle("validate_stock", h.ValidateStock)
	r.Handle("calculate_cart", h.CalculateCart)
}

func (h *Handler) FindAll(ctx context.Context, data json.RawMessage, token string) (interface{}, error) {
	out, err := h.manager.GetProducts()
	if err != nil {
		return nil, storageError(err)
	}
	return out, nil
}

func (h *Handler) FindOne(ctx context.Context, data json.RawMessage, token string) (interface{}, error) {
	id, err := parseID(data)
	if err != nil {
		return nil, err
	}

	p, err := h.manager.GetProduct(id)
	if err != nil {
		return nil, storageError(err)
	}
	return p, nil
}

func (h *Handler) Create(ctx context.Context, data json.RawMessage, token string) (interface{}, error) {
	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, worker.NewError(http.StatusBadRequest, "invalid product payload")
	}
	if p.Name == "" {
		return nil, worker.NewError(http.StatusBadRequest, "product name is required")
	}
	if p.Price < 0 || p.Stock < 0 {
		return nil, worker.NewError(http.StatusBadRequest, "price and stock must not be negative")
	}

	p.ID = uuid.New().String()
	p.CreatedAt = time.Now().UTC().Round(time.Second)
	p.UpdatedAt = p.CreatedAt

	if err := h.manager.CreateProduct(&p); err != nil {
		return nil, storageError(err)
	}
	return &p, nil
}

func (h *Handler) Update(ctx context.Context, data json.RawMessage, token string) (interface{}, error) {
	var req struct {
		ID   string `json:"id"`
		Data struct {
			Name        *string `json:"name"`
			Description *string `json:"description"`
			Category    *string `json:"category"`
			Price       *int64  `json:"price"`
			Stock       *int    `json:"stock"`
			ImageURL    *string `json:"imageUrl"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ID == "" {
		return nil, worker.NewError(http.StatusBadRequest, "invalid update payload")
	}

	p, err := h.manager.GetProduct(req.ID)
	if err != nil {
		return nil, storageError(err)
	}

	if req.Data.Name != nil {
		p.Name = *req.Data.Name
	}
	if req.Data.Description != nil {
		p.Description = *req.Data.Description
	}
	if req.Data.Category != nil {
		p.Category = *req.Data.Category
	}
	if req.Data.Price != nil {
		p.Price = *req.Data.Price
	}
	if req.Data.Stock != nil {
		p.Stock = *req.Data.Stock
	}
	if req.Data.ImageURL != nil {
		p.ImageURL = *req.Data.ImageURL
	}
	p.UpdatedAt = time.Now().UTC().Round(time.Second)

	if err := h.manager.UpdateProduct(p); err != nil {
		return nil, storageError(err)
	}
	return p, nil
}

func (h *Handler) DecreaseStock(ctx context.Context, data json.RawMessage, token string) (interface{}, error) {
	var req struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ProductID == "" {
		return nil, worker.NewError(http.StatusBadRequest, "invalid decrease-stock payload")
	}
	if req.Quantity <= 0 {
		return nil, worker.NewError(http.StatusBadRequest, "quantity must be greater than 0")
	}

	p, err := h.manager.DecreaseStock(req.ProductID, req.Quantity)
	if err != nil {
		return nil, storageError(err)
	}
	return p, nil
}

func (h *Handler) ValidateStock(ctx context.Context, data json.RawMessage, token string) (interface{}, error) {
	items, err := parseItems(data)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		p, err := h.manager.GetProduct(item.ProductID)
		if err == ErrNoSuchProduct {
			return StockValidation{
				Valid:   false,
				Message: fmt.Sprintf("product %s does not exist", item.ProductID),
			}, nil
		}
		if err != nil {
			return nil, storageError(err)
		}
		if p.Stock < item.Quantity {
			return StockValidation{
				Valid: false,
				Message: fmt.Sprintf("insufficient stock for %s: %d requested, %d available",
					p.Name, item.Quantity, p.Stock),
			}, nil
		}
	}

	return StockValidation{Valid: true}, nil
}

func (h *Handler) CalculateCart(ctx context.Context, data json.RawMessage, token string) (interface{}, error) {
	items, err := parseItems(data)
	if err != nil {
		return nil, err
	}

	calc := CartCalculation{Items: make([]PricedItem, 0, len(items))}
	for _, item := range items {
		p, err := h.manager.GetProduct(item.ProductID)
		if err != nil {
			return nil, storageError(err)
		}

		subtotal := p.Price * int64(item.Quantity)
		calc.Items = append(calc.Items, PricedItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  item.Quantity,
			Subtotal:  subtotal,
		})
		calc.Total += subtotal
	}

	return calc, nil
}

// parseID accepts both a bare string id and an {"id": ...} object.
func parseID(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil && id != "" {
		return id, nil
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ID == "" {
		return "", worker.NewError(http.StatusBadRequest, "product id is required")
	}
	return req.ID, nil
}

func parseItems(data json.RawMessage) ([]CartItem, error) {
	var items []CartItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, worker.NewError(http.StatusBadRequest, "invalid cart items payload")
	}
	if len(items) == 0 {
		return nil, worker.NewError(http.StatusBadRequest, "cart is empty")
	}
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return nil, worker.NewError(http.StatusBadRequest, "cart items need a productId and a positive quantity")
		}
	}
	return items, nil
}

func storageError(err error) error {
	switch err {
	case ErrNoSuchProduct:
		return worker.NewError(http.StatusNotFound, "product not found")
	case ErrInsufficientStock:
		return worker.NewError(http.StatusConflict, "insufficient stock")
	default:
		return worker.NewError(http.StatusInternalServerError, err.Error())
	}
}
