package application

import (
	"context"

	catalogdomain "github.com/nvalerio/storefront-api/internal/catalog/domain"
	"github.com/nvalerio/storefront-api/internal/order/domain"
)

// UnitOfWork runs fn inside one transaction. The transaction commits only if
// fn returns nil; any error (or panic) rolls back every write made through tx.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(tx OrderTx) error) error
}

// OrderTx is the transactional surface of order placement. ProductForUpdate
// must lock the product row until the transaction ends, so the stock
// check-then-decrement cannot interleave with a concurrent placement.
type OrderTx interface {
	ProductForUpdate(ctx context.Context, productID int64) (catalogdomain.Product, error)
	InsertOrder(ctx context.Context, o *domain.Order) error
	InsertLine(ctx context.Context, l *domain.Line) error
	DecrementStock(ctx context.Context, productID int64, qty int) error
	AppendEvent(ctx context.Context, aggregateID int64, eventType string, payload []byte, traceparent string) error
}

// OrderReader serves the read endpoints outside the placement transaction.
type OrderReader interface {
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
	Get(ctx context.Context, id int64) (domain.Order, error)
}
