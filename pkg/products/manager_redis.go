package products

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis"
)

const productsIndexKey = "products"

// RedisManager stores each product as a hash under products:<id>, with a
// set of ids under the products key for listing.
type RedisManager struct {
	redisClient *redis.Client
}

func NewRedisManager(redisClient *redis.Client) *RedisManager {
	return &RedisManager{
		redisClient: redisClient,
	}
}

func productKey(id string) string {
	return fmt.Sprintf("products:%s", id)
}

func (m *RedisManager) GetProducts() ([]Product, error) {
	ids, err := m.redisClient.SMembers(productsIndexKey).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		p, err := m.GetProduct(id)
		if err == ErrNoSuchProduct {
			// Index entry without a hash; skip it.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *RedisManager) GetProduct(id string) (*Product, error) {
	fields, err := m.redisClient.HGetAll(productKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNoSuchProduct
	}

	return productFromFields(id, fields)
}

func (m *RedisManager) CreateProduct(p *Product) error {
	key := productKey(p.ID)

	// HSETNX on the name field ensures we never overwrite an existing id.
	ok, err := m.redisClient.HSetNX(key, "name", p.Name).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("products: id %s already exists", p.ID)
	}

	if _, err := m.redisClient.HMSet(key, fieldsFromProduct(p)).Result(); err != nil {
		m.redisClient.Del(key).Result()
		return err
	}
	if _, err := m.redisClient.SAdd(productsIndexKey, p.ID).Result(); err != nil {
		return err
	}
	return nil
}

func (m *RedisManager) UpdateProduct(p *Product) error {
	if _, err := m.GetProduct(p.ID); err != nil {
		return err
	}
	_, err := m.redisClient.HMSet(productKey(p.ID), fieldsFromProduct(p)).Result()
	return err
}

func (m *RedisManager) DecreaseStock(id string, quantity int) (*Product, error) {
	p, err := m.GetProduct(id)
	if err != nil {
		return nil, err
	}
	if p.Stock < quantity {
		return nil, ErrInsufficientStock
	}

	stock, err := m.redisClient.HIncrBy(productKey(id), "stock", int64(-quantity)).Result()
	if err != nil {
		return nil, err
	}
	if stock < 0 {
		// Another consumer won the race; put the quantity back.
		m.redisClient.HIncrBy(productKey(id), "stock", int64(quantity)).Result()
		return nil, ErrInsufficientStock
	}

	m.redisClient.HSet(productKey(id), "updated_at",
		strconv.FormatInt(time.Now().Unix(), 10)).Result()

	p.Stock = int(stock)
	return p, nil
}

func fieldsFromProduct(p *Product) map[string]interface{} {
	fields := make(map[string]interface{})
	fields["name"] = p.Name
	fields["description"] = p.Description
	fields["category"] = p.Category
	fields["price"] = p.Price
	fields["stock"] = p.Stock
	fields["image_url"] = p.ImageURL
	fields["created_at"] = p.CreatedAt.Unix()
	fields["updated_at"] = p.UpdatedAt.Unix()
	return fields
}

func productFromFields(id string, fields map[string]string) (*Product, error) {
	price, err := strconv.ParseInt(fields["price"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("products: corrupt price for %s: %v", id, err)
	}
	stock, err := strconv.Atoi(fields["stock"])
	if err != nil {
		return nil, fmt.Errorf("products: corrupt stock for %s: %v", id, err)
	}

	createdAt, _ := strconv.ParseInt(fields["created_at"], 10, 64)
	updatedAt, _ := strconv.ParseInt(fields["updated_at"], 10, 64)

	return &Product{
		ID:          id,
		Name:        fields["name"],
		Description: fields["description"],
		Category:    fields["category"],
		Price:       price,
		Stock:       stock,
		ImageURL:    fields["image_url"],
		CreatedAt:   time.Unix(createdAt, 0).UTC(),
		UpdatedAt:   time.Unix(updatedAt, 0).UTC(),
	}, nil
}
