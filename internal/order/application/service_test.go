package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dmehra2102/order-engine/internal/clock"
	"github.com/dmehra2102/order-engine/internal/order/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(products ...domain.Product) (*Service, *fakeStore) {
	store := newFakeStore(
		[]domain.Client{{ID: 1, Name: "Jean Dupont", Email: "jean.dupont@email.com"}},
		products,
	)
	return NewService(discardLogger(), store, clock.NewFixed(testNow)), store
}

func TestService_CreateOrder(t *testing.T) {
	t.Parallel()

	t.Run("prices items and decrements stock", func(t *testing.T) {
		svc, store := newTestService(
			domain.Product{ID: 10, Name: "Product A", Price: price("10.00"), StockQuantity: 5},
			domain.Product{ID: 20, Name: "Product B", Price: price("5.50"), StockQuantity: 3},
		)

		view, err := svc.CreateOrder(context.Background(), CreateOrderInput{
			ClientID: 1,
			Items: []OrderItemInput{
				{ProductID: 10, Quantity: 2},
				{ProductID: 20, Quantity: 1},
			},
		})
		require.NoError(t, err)

		assert.True(t, view.TotalAmount.Equal(price("25.50")), "total %s", view.TotalAmount)
		assert.Equal(t, domain.StatusPending, view.Status)
		assert.Equal(t, domain.DefaultSource, view.Source)
		assert.Equal(t, "Jean Dupont", view.ClientName)
		assert.Equal(t, testNow, view.CreatedAt)
		require.Len(t, view.Items, 2)
		assert.Equal(t, "Product A", view.Items[0].ProductName)
		assert.True(t, view.Items[0].Subtotal.Equal(price("20.00")))
		assert.Equal(t, "Product B", view.Items[1].ProductName)
		assert.True(t, view.Items[1].Subtotal.Equal(price("5.50")))

		assert.Equal(t, 3, store.stock(10))
		assert.Equal(t, 2, store.stock(20))
	})

	t.Run("keeps supplied source", func(t *testing.T) {
		svc, _ := newTestService(domain.Product{ID: 10, Name: "A", Price: price("1.00"), StockQuantity: 1})

		view, err := svc.CreateOrder(context.Background(), CreateOrderInput{
			ClientID: 1,
			Items:    []OrderItemInput{{ProductID: 10, Quantity: 1}},
			Source:   "mobile",
		})
		require.NoError(t, err)
		assert.Equal(t, "mobile", view.Source)
	})

	t.Run("total equals the sum of subtotals", func(t *testing.T) {
		svc, _ := newTestService(
			domain.Product{ID: 1, Name: "A", Price: price("0.10"), StockQuantity: 100},
			domain.Product{ID: 2, Name: "B", Price: price("0.20"), StockQuantity: 100},
			domain.Product{ID: 3, Name: "C", Price: price("1299.99"), StockQuantity: 100},
		)

		view, err := svc.CreateOrder(context.Background(), CreateOrderInput{
			ClientID: 1,
			Items: []OrderItemInput{
				{ProductID: 1, Quantity: 7},
				{ProductID: 2, Quantity: 3},
				{ProductID: 3, Quantity: 11},
			},
		})
		require.NoError(t, err)

		sum := decimal.Zero
		for _, item := range view.Items {
			sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		assert.True(t, view.TotalAmount.Equal(sum))
		assert.True(t, view.TotalAmount.Equal(price("14301.19")), "total %s", view.TotalAmount)
	})

	t.Run("records order created event", func(t *testing.T) {
		svc, store := newTestService(domain.Product{ID: 10, Name: "A", Price: price("10.00"), StockQuantity: 5})

		view, err := svc.CreateOrder(context.Background(), CreateOrderInput{
			ClientID: 1,
			Items:    []OrderItemInput{{ProductID: 10, Quantity: 2}},
		})
		require.NoError(t, err)
		require.Len(t, store.events, 1)

		ev := store.events[0]
		assert.Equal(t, domain.EventOrderCreated, ev.Type)

		var payload domain.OrderCreated
		require.NoError(t, json.Unmarshal(ev.Payload, &payload))
		assert.Equal(t, view.ID, payload.OrderID)
		assert.Equal(t, int64(1), payload.ClientID)
		assert.Equal(t, "Jean Dupont", payload.ClientName)
		assert.Equal(t, domain.StatusPending, payload.Status)
		assert.Equal(t, "20.00", payload.TotalAmount)
		assert.Equal(t, "New order created successfully", payload.Message)
	})

	t.Run("missing client", func(t *testing.T) {
		svc, store := newTestService(domain.Product{ID: 10, Name: "A", Price: price("1.00"), StockQuantity: 5})

		_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
			ClientID: 99,
			Items:    []OrderItemInput{{ProductID: 10, Quantity: 1}},
		})
		require.ErrorIs(t, err, domain.ErrClientNotFound)

		var notFound *domain.ClientNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, int64(99), notFound.ClientID)
		assert.Equal(t, 5, store.stock(10))
		assert.Empty(t, store.orders)
	})

	t.Run("missing product rolls back earlier decrements", func(t *testing.T) {
		svc, store := newTestService(domain.Product{ID: 10, Name: "A", Price: price("1.00"), StockQuantity: 5})

		_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
			ClientID: 1,
			Items: []OrderItemInput{
				{ProductID: 10, Quantity: 2},
				{ProductID: 404, Quantity: 1},
			},
		})
		require.ErrorIs(t, err, domain.ErrProductNotFound)

		var notFound *domain.ProductNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, int64(404), notFound.ProductID)
		assert.Equal(t, 5, store.stock(10))
		assert.Empty(t, store.orders)
		assert.Empty(t, store.events)
	})

	t.Run("insufficient stock rolls back earlier decrements", func(t *testing.T) {
		svc, store := newTestService(
			domain.Product{ID: 10, Name: "A", Price: price("1.00"), StockQuantity: 5},
			domain.Product{ID: 20, Name: "B", Price: price("2.00"), StockQuantity: 1},
		)

		_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
			ClientID: 1,
			Items: []OrderItemInput{
				{ProductID: 10, Quantity: 3},
				{ProductID: 20, Quantity: 4},
			},
		})
		require.ErrorIs(t, err, domain.ErrInsufficientStock)

		var stockErr *domain.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, int64(20), stockErr.ProductID)
		assert.Equal(t, "B", stockErr.ProductName)
		assert.Equal(t, 4, stockErr.Requested)
		assert.Equal(t, 1, stockErr.Available)

		assert.Equal(t, 5, store.stock(10))
		assert.Equal(t, 1, store.stock(20))
		assert.Empty(t, store.orders)
	})

	t.Run("repeated product lines share the stock", func(t *testing.T) {
		svc, store := newTestService(domain.Product{ID: 10, Name: "A", Price: price("1.00"), StockQuantity: 3})

		_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
			ClientID: 1,
			Items: []OrderItemInput{
				{ProductID: 10, Quantity: 2},
				{ProductID: 10, Quantity: 2},
			},
		})
		var stockErr *domain.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, 1, stockErr.Available)
		assert.Equal(t, 3, store.stock(10))
	})

	t.Run("outbox failure rolls back the order", func(t *testing.T) {
		svc, store := newTestService(domain.Product{ID: 10, Name: "A", Price: price("1.00"), StockQuantity: 3})
		store.recordErr = errors.New("outbox unavailable")

		_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
			ClientID: 1,
			Items:    []OrderItemInput{{ProductID: 10, Quantity: 1}},
		})
		require.Error(t, err)
		assert.Equal(t, 3, store.stock(10))
		assert.Empty(t, store.orders)
	})

	t.Run("rejects invalid input before touching the store", func(t *testing.T) {
		svc, store := newTestService(domain.Product{ID: 10, Name: "A", Price: price("1.00"), StockQuantity: 3})

		_, err := svc.CreateOrder(context.Background(), CreateOrderInput{ClientID: 1})
		require.ErrorIs(t, err, domain.ErrInvalidOrder)

		_, err = svc.CreateOrder(context.Background(), CreateOrderInput{
			ClientID: 1,
			Items:    []OrderItemInput{{ProductID: 10, Quantity: 0}},
		})
		require.ErrorIs(t, err, domain.ErrInvalidOrder)

		_, err = svc.CreateOrder(context.Background(), CreateOrderInput{
			ClientID: 1,
			Items:    []OrderItemInput{{ProductID: 10, Quantity: -2}},
		})
		require.ErrorIs(t, err, domain.ErrInvalidOrder)
		assert.Equal(t, 3, store.stock(10))
	})

	t.Run("stock tracks every successful order", func(t *testing.T) {
		svc, store := newTestService(
			domain.Product{ID: 10, Name: "A", Price: price("1.00"), StockQuantity: 20},
			domain.Product{ID: 20, Name: "B", Price: price("2.00"), StockQuantity: 20},
		)

		quantities := [][2]int{{1, 2}, {3, 4}, {5, 1}, {2, 2}}
		consumedA, consumedB := 0, 0
		for _, q := range quantities {
			_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
				ClientID: 1,
				Items: []OrderItemInput{
					{ProductID: 10, Quantity: q[0]},
					{ProductID: 20, Quantity: q[1]},
				},
			})
			require.NoError(t, err)
			consumedA += q[0]
			consumedB += q[1]
		}

		_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
			ClientID: 1,
			Items:    []OrderItemInput{{ProductID: 10, Quantity: 100}},
		})
		require.ErrorIs(t, err, domain.ErrInsufficientStock)

		assert.Equal(t, 20-consumedA, store.stock(10))
		assert.Equal(t, 20-consumedB, store.stock(20))
	})
}

func TestService_CreateOrder_Concurrent(t *testing.T) {
	t.Parallel()

	const stock = 5
	svc, store := newTestService(domain.Product{ID: 10, Name: "Last units", Price: price("3.00"), StockQuantity: stock})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateOrder(context.Background(), CreateOrderInput{
				ClientID: 1,
				Items:    []OrderItemInput{{ProductID: 10, Quantity: stock}},
			})
		}(i)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 0, store.stock(10))
	assert.Len(t, store.orders, 1)
}

func TestService_Queries(t *testing.T) {
	t.Parallel()

	t.Run("total survives price changes", func(t *testing.T) {
		svc, store := newTestService(domain.Product{ID: 10, Name: "A", Price: price("10.00"), StockQuantity: 5})

		created, err := svc.CreateOrder(context.Background(), CreateOrderInput{
			ClientID: 1,
			Items:    []OrderItemInput{{ProductID: 10, Quantity: 2}},
		})
		require.NoError(t, err)

		p := store.products[10]
		p.Price = price("99.99")
		store.products[10] = p

		total, err := svc.GetOrderTotal(context.Background(), created.ID)
		require.NoError(t, err)
		assert.True(t, total.Equal(created.TotalAmount))

		got, err := svc.GetOrder(context.Background(), created.ID)
		require.NoError(t, err)
		assert.True(t, got.Items[0].UnitPrice.Equal(price("10.00")))
	})

	t.Run("reads are repeatable", func(t *testing.T) {
		svc, _ := newTestService(domain.Product{ID: 10, Name: "A", Price: price("10.00"), StockQuantity: 5})

		created, err := svc.CreateOrder(context.Background(), CreateOrderInput{
			ClientID: 1,
			Items:    []OrderItemInput{{ProductID: 10, Quantity: 1}},
		})
		require.NoError(t, err)

		first, err := svc.GetOrder(context.Background(), created.ID)
		require.NoError(t, err)
		second, err := svc.GetOrder(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("missing order", func(t *testing.T) {
		svc, _ := newTestService()

		_, err := svc.GetOrder(context.Background(), 7)
		require.ErrorIs(t, err, domain.ErrOrderNotFound)

		_, err = svc.GetOrderTotal(context.Background(), 7)
		require.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	t.Run("lists by client, status and all", func(t *testing.T) {
		svc, store := newTestService(domain.Product{ID: 10, Name: "A", Price: price("1.00"), StockQuantity: 10})
		store.clients[2] = domain.Client{ID: 2, Name: "Marie Martin"}

		for _, clientID := range []int64{1, 2, 1} {
			_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
				ClientID: clientID,
				Items:    []OrderItemInput{{ProductID: 10, Quantity: 1}},
			})
			require.NoError(t, err)
		}

		mine, err := svc.GetOrdersByClient(context.Background(), 1)
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Less(t, mine[0].ID, mine[1].ID)

		none, err := svc.GetOrdersByClient(context.Background(), 3)
		require.NoError(t, err)
		assert.Empty(t, none)

		all, err := svc.GetAllOrders(context.Background())
		require.NoError(t, err)
		assert.Len(t, all, 3)

		_, err = svc.UpdateStatus(context.Background(), all[0].ID, domain.StatusShipped)
		require.NoError(t, err)

		shipped, err := svc.GetOrdersByStatus(context.Background(), domain.StatusShipped)
		require.NoError(t, err)
		require.Len(t, shipped, 1)
		assert.Equal(t, all[0].ID, shipped[0].ID)

		_, err = svc.GetOrdersByStatus(context.Background(), domain.OrderStatus("LOST"))
		require.ErrorIs(t, err, domain.ErrInvalidStatus)
	})
}

func TestService_UpdateStatus(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T) (*Service, *fakeStore, int64) {
		svc, store := newTestService(domain.Product{ID: 10, Name: "A", Price: price("1.00"), StockQuantity: 10})
		created, err := svc.CreateOrder(context.Background(), CreateOrderInput{
			ClientID: 1,
			Items:    []OrderItemInput{{ProductID: 10, Quantity: 1}},
		})
		require.NoError(t, err)
		return svc, store, created.ID
	}

	t.Run("shipped is accepted from any status", func(t *testing.T) {
		for _, from := range []domain.OrderStatus{
			domain.StatusPending,
			domain.StatusConfirmed,
			domain.StatusDelivered,
			domain.StatusCancelled,
		} {
			svc, store, id := setup(t)
			o := store.orders[id]
			o.Status = from
			store.orders[id] = o

			view, err := svc.UpdateStatus(context.Background(), id, domain.StatusShipped)
			require.NoError(t, err, "from %s", from)
			assert.Equal(t, domain.StatusShipped, view.Status)
			assert.Equal(t, domain.StatusShipped, store.orders[id].Status)
		}
	})

	t.Run("terminal states can be left", func(t *testing.T) {
		svc, store, id := setup(t)

		_, err := svc.UpdateStatus(context.Background(), id, domain.StatusDelivered)
		require.NoError(t, err)
		view, err := svc.UpdateStatus(context.Background(), id, domain.StatusPending)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, view.Status)
		assert.Equal(t, domain.StatusPending, store.orders[id].Status)
	})

	t.Run("records status changed event", func(t *testing.T) {
		svc, store, id := setup(t)

		_, err := svc.UpdateStatus(context.Background(), id, domain.StatusConfirmed)
		require.NoError(t, err)
		require.Len(t, store.events, 2)

		ev := store.events[1]
		assert.Equal(t, domain.EventOrderStatusChanged, ev.Type)

		var payload domain.OrderStatusChanged
		require.NoError(t, json.Unmarshal(ev.Payload, &payload))
		assert.Equal(t, id, payload.OrderID)
		assert.Equal(t, "Jean Dupont", payload.ClientName)
		assert.Equal(t, domain.StatusPending, payload.OldStatus)
		assert.Equal(t, domain.StatusConfirmed, payload.NewStatus)
		assert.Equal(t, "Order status updated to: CONFIRMED", payload.Message)
	})

	t.Run("missing order", func(t *testing.T) {
		svc, store := newTestService()

		_, err := svc.UpdateStatus(context.Background(), 42, domain.StatusShipped)
		require.ErrorIs(t, err, domain.ErrOrderNotFound)
		assert.Empty(t, store.events)
	})

	t.Run("lower case status is stored canonical", func(t *testing.T) {
		svc, store, id := setup(t)

		view, err := svc.UpdateStatus(context.Background(), id, domain.OrderStatus("shipped"))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusShipped, view.Status)
		assert.Equal(t, domain.StatusShipped, store.orders[id].Status)

		var payload domain.OrderStatusChanged
		require.NoError(t, json.Unmarshal(store.events[len(store.events)-1].Payload, &payload))
		assert.Equal(t, domain.StatusShipped, payload.NewStatus)

		shipped, err := svc.GetOrdersByStatus(context.Background(), domain.StatusShipped)
		require.NoError(t, err)
		require.Len(t, shipped, 1)
		assert.Equal(t, id, shipped[0].ID)

		lower, err := svc.GetOrdersByStatus(context.Background(), domain.OrderStatus("Shipped"))
		require.NoError(t, err)
		require.Len(t, lower, 1)
		assert.Equal(t, id, lower[0].ID)
	})

	t.Run("unknown status", func(t *testing.T) {
		svc, _, id := setup(t)

		_, err := svc.UpdateStatus(context.Background(), id, domain.OrderStatus("LOST"))
		require.ErrorIs(t, err, domain.ErrInvalidStatus)
	})
}
