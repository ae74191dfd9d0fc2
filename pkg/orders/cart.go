package orders

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis"

	"github.com/C0kke/FitFashion/pkg/products"
)

var ErrEmptyCart = errors.New("orders: cart is empty")
var ErrNoSuchItem = errors.New("orders: item not in cart")

// Cart is a user's current selection, keyed by product id.
type Cart struct {
	UserID string              `json:"userId"`
	Items  []products.CartItem `json:"items"`
}

// PricedCart is the cart as callers see it: every line carries its
// current catalog price and a subtotal, plus the cart total.
type PricedCart struct {
	UserID string                `json:"userId"`
	Items  []products.PricedItem `json:"items"`
	Total  int64                 `json:"total"`
}

// CartManager owns cart storage.
type CartManager interface {
	GetCart(userID string) (*Cart, error)
	AddItem(userID, productID string, quantity int) (*Cart, error)
	RemoveItem(userID, productID string) (*Cart, error)
	ClearCart(userID string) error
}

// RedisCartManager keeps each cart as a hash under cart:<user>, with the
// product id as field and the quantity as value.
type RedisCartManager struct {
	redisClient *redis.Client
}

func NewRedisCartManager(redisClient *redis.Client) *RedisCartManager {
	return &RedisCartManager{
		redisClient: redisClient,
	}
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func (m *RedisCartManager) GetCart(userID string) (*Cart, error) {
	fields, err := m.redisClient.HGetAll(cartKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	cart := &Cart{UserID: userID, Items: make([]products.CartItem, 0, len(fields))}
	for productID, raw := range fields {
		quantity, err := strconv.Atoi(raw)
		if err != nil || quantity <= 0 {
			continue
		}
		cart.Items = append(cart.Items, products.CartItem{
			ProductID: productID,
			Quantity:  quantity,
		})
	}
	return cart, nil
}

// AddItem increments the quantity of a product; a negative quantity
// decrements it, removing the line when it reaches zero.
func (m *RedisCartManager) AddItem(userID, productID string, quantity int) (*Cart, error) {
	key := cartKey(userID)

	total, err := m.redisClient.HIncrBy(key, productID, int64(quantity)).Result()
	if err != nil {
		return nil, err
	}
	if total <= 0 {
		if _, err := m.redisClient.HDel(key, productID).Result(); err != nil {
			return nil, err
		}
	}

	return m.GetCart(userID)
}

func (m *RedisCartManager) RemoveItem(userID, productID string) (*Cart, error) {
	removed, err := m.redisClient.HDel(cartKey(userID), productID).Result()
	if err != nil {
		return nil, err
	}
	if removed == 0 {
		return nil, ErrNoSuchItem
	}
	return m.GetCart(userID)
}

func (m *RedisCartManager) ClearCart(userID string) error {
	_, err := m.redisClient.Del(cartKey(userID)).Result()
	return err
}
