package domain

import "fmt"

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
)

const orderCreatedMessage = "New order created successfully"

// OrderCreated is recorded once an order and its stock decrements commit.
type OrderCreated struct {
	OrderID     int64       `json:"order_id"`
	ClientID    int64       `json:"client_id"`
	ClientName  string      `json:"client_name"`
	Status      OrderStatus `json:"status"`
	TotalAmount string      `json:"total_amount"`
	Message     string      `json:"message"`
}

type OrderStatusChanged struct {
	OrderID    int64       `json:"order_id"`
	ClientID   int64       `json:"client_id"`
	ClientName string      `json:"client_name"`
	OldStatus  OrderStatus `json:"old_status"`
	NewStatus  OrderStatus `json:"new_status"`
	Message    string      `json:"message"`
}

func NewOrderCreated(o Order) OrderCreated {
	return OrderCreated{
		OrderID:     o.ID,
		ClientID:    o.ClientID,
		ClientName:  o.ClientName,
		Status:      o.Status,
		TotalAmount: o.TotalAmount.StringFixed(2),
		Message:     orderCreatedMessage,
	}
}

func NewOrderStatusChanged(o Order, old OrderStatus) OrderStatusChanged {
	return OrderStatusChanged{
		OrderID:    o.ID,
		ClientID:   o.ClientID,
		ClientName: o.ClientName,
		OldStatus:  old,
		NewStatus:  o.Status,
		Message:    fmt.Sprintf("Order status updated to: %s", o.Status),
	}
}
