package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const (
	OrderCreatedReply  = "Order creation notification sent successfully"
	StatusChangedReply = "Status change notification sent successfully"
)

var ErrInvalidNotification = errors.New("invalid notification")

type OrderCreated struct {
	OrderID     int64
	ClientID    int64
	ClientName  string
	Status      string
	TotalAmount string
	Message     string
}

type StatusChanged struct {
	OrderID    int64
	ClientID   int64
	ClientName string
	OldStatus  string
	NewStatus  string
	Message    string
}

type Result struct {
	Success bool
	Message string
}

// Service accepts order notifications. Delivery to the client is a log line.
type Service struct {
	log *slog.Logger
}

func NewService(log *slog.Logger) *Service {
	return &Service{log: log}
}

func (s *Service) OrderCreated(ctx context.Context, n OrderCreated) (Result, error) {
	if n.OrderID <= 0 {
		return Result{}, fmt.Errorf("%w: order id is required", ErrInvalidNotification)
	}

	s.log.InfoContext(ctx, "order created notification",
		"order_id", n.OrderID,
		"client_id", n.ClientID,
		"client_name", n.ClientName,
		"status", n.Status,
		"total_amount", n.TotalAmount,
		"message", n.Message,
	)
	return Result{Success: true, Message: OrderCreatedReply}, nil
}

func (s *Service) StatusChanged(ctx context.Context, n StatusChanged) (Result, error) {
	if n.OrderID <= 0 {
		return Result{}, fmt.Errorf("%w: order id is required", ErrInvalidNotification)
	}
	if n.NewStatus == "" {
		return Result{}, fmt.Errorf("%w: new status is required", ErrInvalidNotification)
	}

	s.log.InfoContext(ctx, "order status notification",
		"order_id", n.OrderID,
		"client_id", n.ClientID,
		"client_name", n.ClientName,
		"old_status", n.OldStatus,
		"new_status", n.NewStatus,
		"message", n.Message,
	)
	return Result{Success: true, Message: StatusChangedReply}, nil
}
