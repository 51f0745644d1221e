package application

import (
	"context"

	"github.com/dmehra2102/order-engine/internal/order/domain"
	"github.com/shopspring/decimal"
)

// TxManager runs fn in one transaction carried by the context passed to fn.
// Returning an error from fn rolls back every write made through that context.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type CatalogRepository interface {
	GetClient(ctx context.Context, id int64) (domain.Client, error)
	// LockProducts locks the rows of the given products until the transaction ends.
	// Unknown ids are absent from the result.
	LockProducts(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
	DecrementStock(ctx context.Context, productID int64, quantity int) error
}

type OrderRepository interface {
	// CreateOrder inserts the order and its items, filling in their ids.
	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	GetOrderForUpdate(ctx context.Context, id int64) (domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	ListOrdersByClient(ctx context.Context, clientID int64) ([]domain.Order, error)
	ListOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
	GetOrderTotal(ctx context.Context, id int64) (decimal.Decimal, error)
	UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error
}

// EventRecorder appends an event to the outbox within the caller's transaction.
type EventRecorder interface {
	Record(ctx context.Context, eventType, aggregateID string, payload []byte, traceparent string) error
}

type Store interface {
	TxManager
	CatalogRepository
	OrderRepository
	EventRecorder
}
