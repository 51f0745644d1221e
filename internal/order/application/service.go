package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/dmehra2102/order-engine/internal/clock"
	"github.com/dmehra2102/order-engine/internal/order/domain"
	"github.com/dmehra2102/order-engine/pkg/tracing"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Service struct {
	log    *slog.Logger
	store  Store
	clock  clock.Clock
	tracer trace.Tracer
}

func NewService(log *slog.Logger, store Store, clk clock.Clock) *Service {
	return &Service{
		log:    log,
		store:  store,
		clock:  clk,
		tracer: otel.Tracer("order-engine"),
	}
}

type CreateOrderInput struct {
	ClientID int64
	Items    []OrderItemInput
	Source   string
}

type OrderItemInput struct {
	ProductID int64
	Quantity  int
}

func (in CreateOrderInput) validate() error {
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", domain.ErrInvalidOrder)
	}
	for i, item := range in.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has quantity %d", domain.ErrInvalidOrder, i, item.Quantity)
		}
	}
	return nil
}

// CreateOrder prices the requested items, decrements their stock and persists the
// order in one transaction. Any failing item rolls back every decrement made before it.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "CreateOrder", trace.WithAttributes(
		attribute.Int64("client.id", in.ClientID),
		attribute.Int("order.items", len(in.Items)),
	))
	defer span.End()

	if err := in.validate(); err != nil {
		return OrderView{}, s.fail(span, err)
	}

	var created domain.Order
	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		client, err := s.store.GetClient(txCtx, in.ClientID)
		if err != nil {
			return err
		}

		order := domain.NewOrder(client, in.Source, s.clock.Now())

		products, err := s.store.LockProducts(txCtx, productIDs(in.Items))
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, req := range in.Items {
			product, ok := products[req.ProductID]
			if !ok {
				return &domain.ProductNotFoundError{ProductID: req.ProductID}
			}
			if product.StockQuantity < req.Quantity {
				return &domain.InsufficientStockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Requested:   req.Quantity,
					Available:   product.StockQuantity,
				}
			}

			total = total.Add(order.AddItem(product, req.Quantity))

			if err := s.store.DecrementStock(txCtx, product.ID, req.Quantity); err != nil {
				return err
			}
			product.StockQuantity -= req.Quantity
			products[product.ID] = product
		}
		order.TotalAmount = total

		if err := s.store.CreateOrder(txCtx, &order); err != nil {
			return err
		}
		if err := s.record(txCtx, domain.EventOrderCreated, order.ID, domain.NewOrderCreated(order)); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		s.log.Warn("order creation rejected", "client_id", in.ClientID, "err", err)
		return OrderView{}, s.fail(span, err)
	}

	span.SetAttributes(attribute.Int64("order.id", created.ID))
	s.log.Info("order created",
		"order_id", created.ID,
		"client_id", created.ClientID,
		"total", created.TotalAmount.StringFixed(2),
		"source", created.Source,
	)
	return NewOrderView(created), nil
}

// UpdateStatus sets any status on the order; transitions are not restricted.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) (OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "UpdateOrderStatus", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	status, err := domain.ParseStatus(string(status))
	if err != nil {
		return OrderView{}, s.fail(span, err)
	}

	var (
		updated domain.Order
		old     domain.OrderStatus
	)
	err = s.store.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.store.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if err := s.store.UpdateStatus(txCtx, orderID, status); err != nil {
			return err
		}

		old = order.Status
		order.Status = status
		if err := s.record(txCtx, domain.EventOrderStatusChanged, order.ID, domain.NewOrderStatusChanged(order, old)); err != nil {
			return err
		}

		updated = order
		return nil
	})
	if err != nil {
		return OrderView{}, s.fail(span, err)
	}

	if old.Terminal() && old != status {
		s.log.Warn("order left terminal status", "order_id", orderID, "from", old, "to", status)
	}
	s.log.Info("order status updated", "order_id", orderID, "from", old, "to", status)
	return NewOrderView(updated), nil
}

func (s *Service) GetOrder(ctx context.Context, orderID int64) (OrderView, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	return NewOrderView(o), nil
}

// GetOrdersByClient lists a client's orders oldest first. Unknown clients yield an empty list.
func (s *Service) GetOrdersByClient(ctx context.Context, clientID int64) ([]OrderView, error) {
	orders, err := s.store.ListOrdersByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return newOrderViews(orders), nil
}

func (s *Service) GetOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]OrderView, error) {
	status, err := domain.ParseStatus(string(status))
	if err != nil {
		return nil, err
	}
	orders, err := s.store.ListOrdersByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	return newOrderViews(orders), nil
}

func (s *Service) GetAllOrders(ctx context.Context) ([]OrderView, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	return newOrderViews(orders), nil
}

// GetOrderTotal returns the amount stored at creation; it is never recomputed.
func (s *Service) GetOrderTotal(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	return s.store.GetOrderTotal(ctx, orderID)
}

func (s *Service) record(ctx context.Context, eventType string, orderID int64, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	return s.store.Record(ctx, eventType, strconv.FormatInt(orderID, 10), payload, tracing.Traceparent(ctx))
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// productIDs returns the distinct ids in ascending order so row locks are always
// taken in the same sequence.
func productIDs(items []OrderItemInput) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
