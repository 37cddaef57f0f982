package domain

import "github.com/shopspring/decimal"

const EventOrderPlaced = "order.placed"

// OrderPlaced is the outbox payload written in the placement transaction.
type OrderPlaced struct {
	OrderID    int64             `json:"order_id"`
	UserID     int64             `json:"user_id"`
	TotalPrice decimal.Decimal   `json:"total_price"`
	Lines      []OrderPlacedLine `json:"items"`
}

type OrderPlacedLine struct {
	ProductID       int64           `json:"product_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

func NewOrderPlaced(o Order) OrderPlaced {
	ev := OrderPlaced{
		OrderID:    o.ID,
		UserID:     o.UserID,
		TotalPrice: o.TotalPrice,
		Lines:      make([]OrderPlacedLine, 0, len(o.Lines)),
	}
	for _, l := range o.Lines {
		ev.Lines = append(ev.Lines, OrderPlacedLine{
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			PriceAtPurchase: l.PriceAtPurchase,
		})
	}
	return ev
}
