package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmehra2102/order-engine/internal/order/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

func (s *Store) GetClient(ctx context.Context, id int64) (domain.Client, error) {
	const query = `SELECT id, name, email, phone, address FROM clients WHERE id = $1`

	var c domain.Client
	err := s.queryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Client{}, &domain.ClientNotFoundError{ClientID: id}
		}
		return domain.Client{}, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

// LockProducts takes row locks in id order. Callers pass sorted ids.
func (s *Store) LockProducts(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	const query = `
SELECT id, name, description, price::text, stock_quantity, category
FROM products
WHERE id = ANY($1)
ORDER BY id
FOR UPDATE`

	rows, err := s.query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]domain.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("lock products: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	const query = `SELECT id, name, description, price::text, stock_quantity, category FROM products WHERE id = $1`

	p, err := scanProduct(s.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, &domain.ProductNotFoundError{ProductID: id}
		}
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// DecrementStock never lets stock go below zero; a short row is reported as insufficient stock.
func (s *Store) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	const stmt = `
UPDATE products
SET stock_quantity = stock_quantity - $2
WHERE id = $1 AND stock_quantity >= $2`

	tag, err := s.exec(ctx, stmt, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	p, getErr := s.GetProduct(ctx, productID)
	if getErr != nil {
		return getErr
	}
	s.log.Debug("stock decrement rejected", "product_id", productID, "requested", quantity, "available", p.StockQuantity)
	return &domain.InsufficientStockError{
		ProductID:   p.ID,
		ProductName: p.Name,
		Requested:   quantity,
		Available:   p.StockQuantity,
	}
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.StockQuantity, &p.Category); err != nil {
		return domain.Product{}, err
	}
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("parse price of product %d: %w", p.ID, err)
	}
	p.Price = amount
	return p, nil
}
