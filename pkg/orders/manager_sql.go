package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

func NewSQLManager(db *sqlx.DB) *SQLManager {
	return &SQLManager{
		DB: db,
	}
}

type SQLManager struct {
	DB *sqlx.DB
}

type orderData struct {
	PK              int       `db:"pk"`
	ID              string    `db:"order_id"`
	UserID          string    `db:"user_id"`
	ShippingAddress string    `db:"shipping_address"`
	Status          string    `db:"order_status"`
	Total           int64     `db:"order_total"`
	CreatedAt       time.Time `db:"created_at"`
}

type orderItemData struct {
	PK        int    `db:"pk"`
	OrderID   string `db:"order_id"`
	ProductID string `db:"product_id"`
	Name      string `db:"product_name"`
	UnitPrice int64  `db:"unit_price"`
	Quantity  int    `db:"quantity"`
}

var orderParams = []string{
	"order_id",
	"user_id",
	"shipping_address",
	"order_status",
	"order_total",
	"created_at",
}

var orderItemParams = []string{
	"order_id",
	"product_id",
	"product_name",
	"unit_price",
	"quantity",
}

func orderDataFromDTO(dto *Order) *orderData {
	createdAt := dto.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return &orderData{
		ID:              dto.ID,
		UserID:          dto.UserID,
		ShippingAddress: dto.ShippingAddress,
		Status:          dto.Status,
		Total:           dto.Total,
		CreatedAt:       createdAt.Round(time.Second),
	}
}

func (d *orderData) ToDTO() *Order {
	return &Order{
		ID:              d.ID,
		UserID:          d.UserID,
		ShippingAddress: d.ShippingAddress,
		Status:          d.Status,
		Total:           d.Total,
		CreatedAt:       d.CreatedAt,
	}
}

// CreateOrder writes the order and its items in one transaction.
func (m *SQLManager) CreateOrder(ctx context.Context, dto *Order) error {
	tx, err := m.DB.BeginTxx(ctx, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, fmt.Sprintf(
		"INSERT INTO orders (%s) VALUES (%s)",
		strings.Join(orderParams, ", "),
		":"+strings.Join(orderParams, ", :"),
	), orderDataFromDTO(dto)); err != nil {
		return errors.WithStack(err)
	}

	for _, item := range dto.Items {
		data := &orderItemData{
			OrderID:   dto.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
		if _, err := tx.NamedExecContext(ctx, fmt.Sprintf(
			"INSERT INTO order_items (%s) VALUES (%s)",
			strings.Join(orderItemParams, ", "),
			":"+strings.Join(orderItemParams, ", :"),
		), data); err != nil {
			return errors.WithStack(err)
		}
	}

	return errors.WithStack(tx.Commit())
}

func (m *SQLManager) GetOrdersByUser(ctx context.Context, userID string) ([]Order, error) {
	data := make([]orderData, 0)
	if err := m.DB.SelectContext(ctx, &data,
		m.DB.Rebind("SELECT * FROM orders WHERE user_id=? ORDER BY created_at DESC"),
		userID); err != nil {
		return nil, errors.WithStack(err)
	}

	return m.withItems(ctx, data)
}

func (m *SQLManager) GetAllOrders(ctx context.Context) ([]Order, error) {
	data := make([]orderData, 0)
	if err := m.DB.SelectContext(ctx, &data,
		"SELECT * FROM orders ORDER BY created_at DESC"); err != nil {
		return nil, errors.WithStack(err)
	}

	return m.withItems(ctx, data)
}

// withItems loads the line items for each order row.
func (m *SQLManager) withItems(ctx context.Context, data []orderData) ([]Order, error) {
	out := make([]Order, 0, len(data))
	for _, d := range data {
		order := d.ToDTO()

		items := make([]orderItemData, 0)
		if err := m.DB.SelectContext(ctx, &items,
			m.DB.Rebind("SELECT * FROM order_items WHERE order_id=? ORDER BY pk"),
			d.ID); err != nil {
			return nil, errors.WithStack(err)
		}
		for _, i := range items {
			order.Items = append(order.Items, OrderItem{
				ProductID: i.ProductID,
				Name:      i.Name,
				UnitPrice: i.UnitPrice,
				Quantity:  i.Quantity,
			})
		}

		out = append(out, *order)
	}
	return out, nil
}
