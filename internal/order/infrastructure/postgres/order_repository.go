package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmehra2102/order-engine/internal/order/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const selectOrders = `
SELECT o.id, o.client_id, c.name, o.created_at, o.status, o.total_amount::text, o.source
FROM orders o
JOIN clients c ON c.id = o.client_id`

func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) error {
	const insertOrder = `
INSERT INTO orders (client_id, created_at, status, total_amount, source)
VALUES ($1, $2, $3, $4::numeric, $5)
RETURNING id`

	err := s.queryRow(ctx, insertOrder, o.ClientID, o.CreatedAt, o.Status, o.TotalAmount.String(), o.Source).Scan(&o.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return &domain.ClientNotFoundError{ClientID: o.ClientID}
		}
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4::numeric)
			RETURNING id`,
			o.ID, item.ProductID, item.Quantity, item.UnitPrice.String())
	}
	results := s.sendBatch(ctx, batch)
	for i := range o.Items {
		if err := results.QueryRow().Scan(&o.Items[i].ID); err != nil {
			_ = results.Close()
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	return s.getOrder(ctx, selectOrders+` WHERE o.id = $1`, id)
}

func (s *Store) GetOrderForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	return s.getOrder(ctx, selectOrders+` WHERE o.id = $1 FOR UPDATE OF o`, id)
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.listOrders(ctx, selectOrders+` ORDER BY o.created_at, o.id`)
}

func (s *Store) ListOrdersByClient(ctx context.Context, clientID int64) ([]domain.Order, error) {
	return s.listOrders(ctx, selectOrders+` WHERE o.client_id = $1 ORDER BY o.created_at, o.id`, clientID)
}

func (s *Store) ListOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	return s.listOrders(ctx, selectOrders+` WHERE o.status = $1 ORDER BY o.created_at, o.id`, status)
}

func (s *Store) GetOrderTotal(ctx context.Context, id int64) (decimal.Decimal, error) {
	var total string
	err := s.queryRow(ctx, `SELECT total_amount::text FROM orders WHERE id = $1`, id).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, &domain.OrderNotFoundError{OrderID: id}
		}
		return decimal.Zero, fmt.Errorf("get order total: %w", err)
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse total of order %d: %w", id, err)
	}
	return amount, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	tag, err := s.exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.OrderNotFoundError{OrderID: id}
	}
	return nil
}

func (s *Store) getOrder(ctx context.Context, query string, id int64) (domain.Order, error) {
	o, err := scanOrder(s.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, &domain.OrderNotFoundError{OrderID: id}
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}

	orders := []domain.Order{o}
	if err := s.loadItems(ctx, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

func (s *Store) listOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	rows.Close()

	if err := s.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) loadItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids = append(ids, o.ID)
		index[o.ID] = i
	}

	const query = `
SELECT i.id, i.order_id, i.product_id, p.name, i.quantity, i.unit_price::text
FROM order_items i
JOIN products p ON p.id = i.product_id
WHERE i.order_id = ANY($1)
ORDER BY i.order_id, i.id`

	rows, err := s.query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item    domain.OrderItem
			orderID int64
			price   string
		)
		if err := rows.Scan(&item.ID, &orderID, &item.ProductID, &item.ProductName, &item.Quantity, &price); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("parse unit price of item %d: %w", item.ID, err)
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o     domain.Order
		total string
	)
	if err := row.Scan(&o.ID, &o.ClientID, &o.ClientName, &o.CreatedAt, &o.Status, &total, &o.Source); err != nil {
		return domain.Order{}, err
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return domain.Order{}, fmt.Errorf("parse total of order %d: %w", o.ID, err)
	}
	o.TotalAmount = amount
	o.CreatedAt = o.CreatedAt.UTC()
	return o, nil
}
