package application

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/dmehra2102/order-engine/internal/order/domain"
	"github.com/shopspring/decimal"
)

type recordedEvent struct {
	Type        string
	AggregateID string
	Payload     []byte
}

// fakeStore serializes transactions with a mutex and restores a snapshot when fn fails,
// which is enough to observe all-or-nothing behavior without a database.
type fakeStore struct {
	mu sync.Mutex

	clients  map[int64]domain.Client
	products map[int64]domain.Product
	orders   map[int64]domain.Order
	events   []recordedEvent

	nextOrderID int64
	nextItemID  int64
	recordErr   error
}

type fakeSnapshot struct {
	products    map[int64]domain.Product
	orders      map[int64]domain.Order
	events      []recordedEvent
	nextOrderID int64
	nextItemID  int64
}

func newFakeStore(clients []domain.Client, products []domain.Product) *fakeStore {
	f := &fakeStore{
		clients:  make(map[int64]domain.Client),
		products: make(map[int64]domain.Product),
		orders:   make(map[int64]domain.Order),
	}
	for _, c := range clients {
		f.clients[c.ID] = c
	}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := fakeSnapshot{
		products:    maps.Clone(f.products),
		orders:      maps.Clone(f.orders),
		events:      slices.Clone(f.events),
		nextOrderID: f.nextOrderID,
		nextItemID:  f.nextItemID,
	}
	if err := fn(ctx); err != nil {
		f.products = snap.products
		f.orders = snap.orders
		f.events = snap.events
		f.nextOrderID = snap.nextOrderID
		f.nextItemID = snap.nextItemID
		return err
	}
	return nil
}

func (f *fakeStore) GetClient(_ context.Context, id int64) (domain.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return domain.Client{}, &domain.ClientNotFoundError{ClientID: id}
	}
	return c, nil
}

func (f *fakeStore) LockProducts(_ context.Context, ids []int64) (map[int64]domain.Product, error) {
	out := make(map[int64]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeStore) DecrementStock(_ context.Context, productID int64, quantity int) error {
	p, ok := f.products[productID]
	if !ok {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	if p.StockQuantity < quantity {
		return &domain.InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Requested: quantity, Available: p.StockQuantity}
	}
	p.StockQuantity -= quantity
	f.products[productID] = p
	return nil
}

func (f *fakeStore) CreateOrder(_ context.Context, o *domain.Order) error {
	f.nextOrderID++
	o.ID = f.nextOrderID
	items := slices.Clone(o.Items)
	for i := range items {
		f.nextItemID++
		items[i].ID = f.nextItemID
	}
	o.Items = items
	stored := *o
	stored.Items = slices.Clone(items)
	f.orders[o.ID] = stored
	return nil
}

func (f *fakeStore) GetOrder(_ context.Context, id int64) (domain.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return domain.Order{}, &domain.OrderNotFoundError{OrderID: id}
	}
	return o, nil
}

func (f *fakeStore) GetOrderForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	return f.GetOrder(ctx, id)
}

func (f *fakeStore) ListOrders(_ context.Context) ([]domain.Order, error) {
	return f.filter(func(domain.Order) bool { return true }), nil
}

func (f *fakeStore) ListOrdersByClient(_ context.Context, clientID int64) ([]domain.Order, error) {
	return f.filter(func(o domain.Order) bool { return o.ClientID == clientID }), nil
}

func (f *fakeStore) ListOrdersByStatus(_ context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	return f.filter(func(o domain.Order) bool { return o.Status == status }), nil
}

func (f *fakeStore) GetOrderTotal(_ context.Context, id int64) (decimal.Decimal, error) {
	o, ok := f.orders[id]
	if !ok {
		return decimal.Zero, &domain.OrderNotFoundError{OrderID: id}
	}
	return o.TotalAmount, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id int64, status domain.OrderStatus) error {
	o, ok := f.orders[id]
	if !ok {
		return &domain.OrderNotFoundError{OrderID: id}
	}
	o.Status = status
	f.orders[id] = o
	return nil
}

func (f *fakeStore) Record(_ context.Context, eventType, aggregateID string, payload []byte, _ string) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.events = append(f.events, recordedEvent{Type: eventType, AggregateID: aggregateID, Payload: payload})
	return nil
}

func (f *fakeStore) filter(keep func(domain.Order) bool) []domain.Order {
	var out []domain.Order
	for _, o := range f.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b domain.Order) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
	return out
}

func (f *fakeStore) stock(id int64) int {
	return f.products[id].StockQuantity
}
