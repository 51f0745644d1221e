package domain

import "github.com/shopspring/decimal"

type Client struct {
	ID      int64
	Name    string
	Email   string
	Phone   string
	Address string
}

type Product struct {
	ID            int64
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	Category      string
}
