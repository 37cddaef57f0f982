package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	catalogapp "github.com/nvalerio/storefront-api/internal/catalog/application"
	catalogdomain "github.com/nvalerio/storefront-api/internal/catalog/domain"
	"github.com/nvalerio/storefront-api/internal/order/application"
	"github.com/nvalerio/storefront-api/internal/order/domain"
)

// UnitOfWork implements application.UnitOfWork on a pgx transaction. The
// deferred rollback is a no-op once the transaction has committed, so every
// exit path (including panics) releases the row locks.
type UnitOfWork struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewUnitOfWork(log *slog.Logger, pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{log: log, pool: pool}
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(tx application.OrderTx) error) error {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&orderTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type orderTx struct {
	tx pgx.Tx
}

// ProductForUpdate reads the product under a row lock held until the
// transaction commits or rolls back.
func (t *orderTx) ProductForUpdate(ctx context.Context, productID int64) (catalogdomain.Product, error) {
	var p catalogdomain.Product
	err := t.tx.QueryRow(ctx, `SELECT id, name, price, stock, created_at, updated_at
		FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalogdomain.Product{}, catalogapp.ErrProductNotFound
	}
	if err != nil {
		return catalogdomain.Product{}, err
	}
	return p, nil
}

func (t *orderTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	return t.tx.QueryRow(ctx, `INSERT INTO orders (user_id, total_price, created_at)
		VALUES ($1,$2,$3) RETURNING id`,
		o.UserID, o.TotalPrice, o.CreatedAt).Scan(&o.ID)
}

func (t *orderTx) InsertLine(ctx context.Context, l *domain.Line) error {
	return t.tx.QueryRow(ctx, `INSERT INTO order_lines (order_id, product_id, quantity, price_at_purchase)
		VALUES ($1,$2,$3,$4) RETURNING id`,
		l.OrderID, l.ProductID, l.Quantity, l.PriceAtPurchase).Scan(&l.ID)
}

func (t *orderTx) DecrementStock(ctx context.Context, productID int64, qty int) error {
	ct, err := t.tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id=$1`,
		productID, qty)
	if err != nil {
		return fmt.Errorf("decrement stock for product %d: %w", productID, err)
	}
	if ct.RowsAffected() == 0 {
		return catalogapp.ErrProductNotFound
	}
	return nil
}

func (t *orderTx) AppendEvent(ctx context.Context, aggregateID int64, eventType string, payload []byte, traceparent string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ('order', $1, $2, $3, $4, 'pending')`,
		strconv.FormatInt(aggregateID, 10), eventType, payload, traceparent)
	return err
}
