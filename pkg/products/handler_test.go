package products

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/C0kke/FitFashion/pkg/worker"
)

type fakeManager struct {
	products map[string]*Product
}

func newFakeManager(ps ...*Product) *fakeManager {
	m := &fakeManager{products: make(map[string]*Product)}
	for _, p := range ps {
		m.products[p.ID] = p
	}
	return m
}

func (m *fakeManager) GetProducts() ([]Product, error) {
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out, nil
}

func (m *fakeManager) GetProduct(id string) (*Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNoSuchProduct
	}
	cp := *p
	return &cp, nil
}

func (m *fakeManager) CreateProduct(p *Product) error {
	m.products[p.ID] = p
	return nil
}

func (m *fakeManager) UpdateProduct(p *Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return ErrNoSuchProduct
	}
	m.products[p.ID] = p
	return nil
}

func (m *fakeManager) DecreaseStock(id string, quantity int) (*Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNoSuchProduct
	}
	if p.Stock < quantity {
		return nil, ErrInsufficientStock
	}
	p.Stock -= quantity
	return p, nil
}

func workerError(t *testing.T, err error) *worker.Error {
	t.Helper()
	require.Error(t, err)
	we, ok := err.(*worker.Error)
	require.True(t, ok, "expected a worker error, got %v", err)
	return we
}

func TestFindOneAcceptsBareIDAndObject(t *testing.T) {
	h := NewHandler(newFakeManager(&Product{ID: "id-123", Name: "Shirt", Price: 1000, Stock: 3}))
	ctx := context.Background()

	for _, payload := range []string{`"id-123"`, `{"id":"id-123"}`} {
		res, err := h.FindOne(ctx, json.RawMessage(payload), "")
		require.NoError(t, err, "payload %s", payload)
		p := res.(*Product)
		assert.Equal(t, "Shirt", p.Name)
		assert.Equal(t, int64(1000), p.Price)
	}
}

func TestFindOneUnknownProduct(t *testing.T) {
	h := NewHandler(newFakeManager())
	_, err := h.FindOne(context.Background(), json.RawMessage(`"ghost"`), "")
	assert.Equal(t, 404, workerError(t, err).Status)
}

func TestCreateAssignsIDAndTimestamps(t *testing.T) {
	m := newFakeManager()
	h := NewHandler(m)

	res, err := h.Create(context.Background(),
		json.RawMessage(`{"name":"Jacket","price":4500,"stock":10,"category":"outerwear"}`), "")
	require.NoError(t, err)

	p := res.(*Product)
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Len(t, m.products, 1)
}

func TestCreateRejectsInvalidPayloads(t *testing.T) {
	h := NewHandler(newFakeManager())
	ctx := context.Background()

	for name, payload := range map[string]string{
		"missing name":   `{"price":100,"stock":1}`,
		"negative price": `{"name":"x","price":-1,"stock":1}`,
		"not json":       `nope`,
	} {
		_, err := h.Create(ctx, json.RawMessage(payload), "")
		assert.Equal(t, 400, workerError(t, err).Status, name)
	}
}

func TestUpdateAppliesPartialFields(t *testing.T) {
	m := newFakeManager(&Product{ID: "id-1", Name: "Shirt", Price: 1000, Stock: 5})
	h := NewHandler(m)

	res, err := h.Update(context.Background(),
		json.RawMessage(`{"id":"id-1","data":{"price":1200}}`), "")
	require.NoError(t, err)

	p := res.(*Product)
	assert.Equal(t, int64(1200), p.Price)
	assert.Equal(t, "Shirt", p.Name, "untouched fields must survive")
	assert.Equal(t, 5, p.Stock)
}

func TestDecreaseStock(t *testing.T) {
	m := newFakeManager(&Product{ID: "id-1", Name: "Shirt", Price: 1000, Stock: 5})
	h := NewHandler(m)
	ctx := context.Background()

	res, err := h.DecreaseStock(ctx, json.RawMessage(`{"productId":"id-1","quantity":3}`), "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.(*Product).Stock)

	_, err = h.DecreaseStock(ctx, json.RawMessage(`{"productId":"id-1","quantity":3}`), "")
	assert.Equal(t, 409, workerError(t, err).Status)

	_, err = h.DecreaseStock(ctx, json.RawMessage(`{"productId":"id-1","quantity":0}`), "")
	assert.Equal(t, 400, workerError(t, err).Status)
}

func TestValidateStock(t *testing.T) {
	h := NewHandler(newFakeManager(
		&Product{ID: "id-1", Name: "Shirt", Price: 1000, Stock: 5},
		&Product{ID: "id-2", Name: "Pants", Price: 2000, Stock: 1},
	))
	ctx := context.Background()

	res, err := h.ValidateStock(ctx,
		json.RawMessage(`[{"productId":"id-1","quantity":2},{"productId":"id-2","quantity":1}]`), "")
	require.NoError(t, err)
	assert.True(t, res.(StockValidation).Valid)

	res, err = h.ValidateStock(ctx,
		json.RawMessage(`[{"productId":"id-2","quantity":3}]`), "")
	require.NoError(t, err)
	v := res.(StockValidation)
	assert.False(t, v.Valid)
	assert.Contains(t, v.Message, "Pants")

	res, err = h.ValidateStock(ctx,
		json.RawMessage(`[{"productId":"ghost","quantity":1}]`), "")
	require.NoError(t, err)
	assert.False(t, res.(StockValidation).Valid)
}

func TestCalculateCart(t *testing.T) {
	h := NewHandler(newFakeManager(
		&Product{ID: "id-1", Name: "Shirt", Price: 1000, Stock: 5},
		&Product{ID: "id-2", Name: "Pants", Price: 2000, Stock: 5},
	))

	res, err := h.CalculateCart(context.Background(),
		json.RawMessage(`[{"productId":"id-1","quantity":2},{"productId":"id-2","quantity":1}]`), "")
	require.NoError(t, err)

	calc := res.(CartCalculation)
	assert.Equal(t, int64(4000), calc.Total)
	require.Len(t, calc.Items, 2)
	assert.Equal(t, int64(2000), calc.Items[0].Subtotal)
}
