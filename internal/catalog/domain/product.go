package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Stock is only ever decremented through order
// placement and must not go negative.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Update holds a partial product mutation. Nil fields are left untouched.
type Update struct {
	Name  *string
	Price *decimal.Decimal
	Stock *int
}

func (u Update) Apply(p *Product) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	p.UpdatedAt = time.Now().UTC()
}
