package domain

import (
	"time"

	"github.com/shopspring/decimal"

	catalogdomain "github.com/nvalerio/storefront-api/internal/catalog/domain"
)

// Order is created by placement only and is immutable afterwards.
type Order struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
	Lines      []Line          `json:"items"`
}

// Line references one product of an order. PriceAtPurchase snapshots the
// product's unit price at placement time and never changes afterwards, even
// when the catalog price does.
type Line struct {
	ID              int64                  `json:"id"`
	OrderID         int64                  `json:"order_id"`
	ProductID       int64                  `json:"product_id"`
	Quantity        int                    `json:"quantity"`
	PriceAtPurchase decimal.Decimal        `json:"price_at_purchase"`
	Product         *catalogdomain.Product `json:"product,omitempty"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.PriceAtPurchase.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// NewOrder assembles an order from priced lines. The total is the sum of
// quantity times price-at-purchase over all lines and is never recomputed.
func NewOrder(userID int64, lines []Line) Order {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return Order{
		UserID:     userID,
		TotalPrice: total,
		CreatedAt:  time.Now().UTC(),
		Lines:      lines,
	}
}
