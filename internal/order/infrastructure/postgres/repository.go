package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	catalogdomain "github.com/nvalerio/storefront-api/internal/catalog/domain"
	"github.com/nvalerio/storefront-api/internal/order/application"
	"github.com/nvalerio/storefront-api/internal/order/domain"
)

// Repository serves order reads with lines and their products nested.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const lineQuery = `SELECT l.id, l.order_id, l.product_id, l.quantity, l.price_at_purchase,
		p.id, p.name, p.price, p.stock, p.created_at, p.updated_at
	FROM order_lines l
	JOIN products p ON p.id = l.product_id`

func (r *Repository) Get(ctx context.Context, id int64) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, `SELECT id, user_id, total_price, created_at FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, application.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}

	rows, err := r.pool.Query(ctx, lineQuery+` WHERE l.order_id=$1 ORDER BY l.id`, id)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()

	o.Lines, err = scanLines(rows, nil)
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, total_price, created_at FROM orders WHERE user_id=$1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []domain.Order{}
	index := map[int64]int{}
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Lines = []domain.Line{}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	lineRows, err := r.pool.Query(ctx, lineQuery+`
		JOIN orders o ON o.id = l.order_id
		WHERE o.user_id=$1 ORDER BY l.order_id, l.id`, userID)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()

	_, err = scanLines(lineRows, func(l domain.Line) {
		if i, ok := index[l.OrderID]; ok {
			orders[i].Lines = append(orders[i].Lines, l)
		}
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// scanLines drains rows of lineQuery shape. When each is non-nil it is called
// per line and the returned slice is nil; otherwise all lines are returned.
func scanLines(rows pgx.Rows, each func(domain.Line)) ([]domain.Line, error) {
	var lines []domain.Line
	if each == nil {
		lines = []domain.Line{}
	}
	for rows.Next() {
		var l domain.Line
		var p catalogdomain.Product
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.PriceAtPurchase,
			&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		l.Product = &p
		if each != nil {
			each(l)
		} else {
			lines = append(lines, l)
		}
	}
	return lines, rows.Err()
}
