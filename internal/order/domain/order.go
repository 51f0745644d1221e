package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultSource = "e-commerce"

type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusConfirmed  OrderStatus = "CONFIRMED"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

var statuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

func ParseStatus(s string) (OrderStatus, error) {
	candidate := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range statuses {
		if st == candidate {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type Order struct {
	ID          int64
	ClientID    int64
	ClientName  string
	CreatedAt   time.Time
	Status      OrderStatus
	TotalAmount decimal.Decimal
	Source      string
	Items       []OrderItem
}

// OrderItem holds the unit price captured when the order was placed.
type OrderItem struct {
	ID          int64
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// NewOrder starts a pending order. A blank source falls back to DefaultSource.
func NewOrder(client Client, source string, now time.Time) Order {
	if strings.TrimSpace(source) == "" {
		source = DefaultSource
	}
	return Order{
		ClientID:    client.ID,
		ClientName:  client.Name,
		CreatedAt:   now,
		Status:      StatusPending,
		TotalAmount: decimal.Zero,
		Source:      source,
	}
}

// AddItem appends a line priced at the product's current price and returns its subtotal.
func (o *Order) AddItem(p Product, quantity int) decimal.Decimal {
	item := OrderItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    quantity,
		UnitPrice:   p.Price,
	}
	o.Items = append(o.Items, item)
	return item.Subtotal()
}

func (o Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}
