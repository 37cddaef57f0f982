package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nvalerio/storefront-api/internal/catalog/application"
	"github.com/nvalerio/storefront-api/internal/catalog/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, price, stock, created_at, updated_at FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx, `SELECT id, name, price, stock, created_at, updated_at FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, application.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *Repository) Insert(ctx context.Context, p *domain.Product) error {
	return r.pool.QueryRow(ctx, `INSERT INTO products (name, price, stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		p.Name, p.Price, p.Stock, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
}

// Update writes only the supplied fields in a single statement. Absent fields
// keep whatever value the row holds at execution time, so a name-only patch
// cannot overwrite a stock value changed by a concurrent placement.
func (r *Repository) Update(ctx context.Context, id int64, u domain.Update) (domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx, `UPDATE products
		SET name=COALESCE($2,name), price=COALESCE($3,price), stock=COALESCE($4,stock), updated_at=$5
		WHERE id=$1
		RETURNING id, name, price, stock, created_at, updated_at`,
		id, u.Name, u.Price, u.Stock, time.Now().UTC()).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, application.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return application.ErrProductNotFound
	}
	return nil
}
