package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nvalerio/storefront-api/internal/catalog/domain"
	"github.com/nvalerio/storefront-api/pkg/cache"
)

var ErrProductNotFound = errors.New("product not found")

const listCacheKey = "products"

// Service serves the product catalog. The full listing is the hot path and is
// read through Redis; any admin write invalidates the cached listing.
type Service struct {
	log   *slog.Logger
	repo  ProductRepository
	cache cache.Cache
	ttl   time.Duration
}

func NewService(log *slog.Logger, repo ProductRepository, c cache.Cache, ttl time.Duration) *Service {
	return &Service{log: log, repo: repo, cache: c, ttl: ttl}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	key := s.cache.Key(listCacheKey)
	if raw, err := s.cache.Get(ctx, key); err != nil {
		s.log.WarnContext(ctx, "product cache read failed", "err", err)
	} else if raw != "" {
		var products []domain.Product
		if err := json.Unmarshal([]byte(raw), &products); err == nil {
			return products, nil
		}
	}

	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(products); err == nil {
		if err := s.cache.Set(ctx, key, string(raw), s.ttl); err != nil {
			s.log.WarnContext(ctx, "product cache write failed", "err", err)
		}
	}
	return products, nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, p *domain.Product) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.repo.Insert(ctx, p); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.log.InfoContext(ctx, "product created", "product_id", p.ID)
	return nil
}

func (s *Service) Update(ctx context.Context, id int64, u domain.Update) (domain.Product, error) {
	p, err := s.repo.Update(ctx, id, u)
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidate(ctx)
	s.log.InfoContext(ctx, "product updated", "product_id", id)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.log.InfoContext(ctx, "product deleted", "product_id", id)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, s.cache.Key(listCacheKey)); err != nil {
		s.log.WarnContext(ctx, "product cache invalidation failed", "err", err)
	}
}
