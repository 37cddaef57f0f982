package application

import (
	"context"

	"github.com/nvalerio/storefront-api/internal/auth/domain"
)

type UserRepository interface {
	Insert(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
}

type TokenRepository interface {
	Insert(ctx context.Context, t domain.Token) error
	Get(ctx context.Context, digest string) (domain.Token, error)
	Delete(ctx context.Context, digest string) error
}
