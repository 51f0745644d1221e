package application

import (
	"time"

	"github.com/dmehra2102/order-engine/internal/order/domain"
	"github.com/shopspring/decimal"
)

// OrderView is the single read shape handed to every protocol adapter.
type OrderView struct {
	ID          int64
	ClientID    int64
	ClientName  string
	CreatedAt   time.Time
	Status      domain.OrderStatus
	TotalAmount decimal.Decimal
	Source      string
	Items       []OrderItemView
}

type OrderItemView struct {
	ID          int64
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

func NewOrderView(o domain.Order) OrderView {
	items := make([]OrderItemView, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemView{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal(),
		})
	}
	return OrderView{
		ID:          o.ID,
		ClientID:    o.ClientID,
		ClientName:  o.ClientName,
		CreatedAt:   o.CreatedAt,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		Source:      o.Source,
		Items:       items,
	}
}

func newOrderViews(orders []domain.Order) []OrderView {
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, NewOrderView(o))
	}
	return views
}
