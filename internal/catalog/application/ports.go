package application

import (
	"context"

	"github.com/nvalerio/storefront-api/internal/catalog/domain"
)

type ProductRepository interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id int64) (domain.Product, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Insert(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, id int64, u domain.Update) (domain.Product, error)
	Delete(ctx context.Context, id int64) error
}
