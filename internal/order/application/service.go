package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	catalogapp "github.com/nvalerio/storefront-api/internal/catalog/application"
	catalogdomain "github.com/nvalerio/storefront-api/internal/catalog/domain"
	"github.com/nvalerio/storefront-api/internal/order/domain"
	"github.com/nvalerio/storefront-api/pkg/tracing"
)

// LineRequest is one entry of a placement request.
type LineRequest struct {
	ProductID int64
	Quantity  int
}

type Service struct {
	log    *slog.Logger
	uow    UnitOfWork
	reader OrderReader
}

func NewService(log *slog.Logger, uow UnitOfWork, reader OrderReader) *Service {
	return &Service{log: log, uow: uow, reader: reader}
}

// PlaceOrder validates the requested lines against live stock, snapshots
// prices, and persists the order, its lines, the stock decrements, and an
// order.placed outbox event as one transaction. Any failure rolls the whole
// unit back; no partial order is ever visible.
//
// Quantities are aggregated per distinct product before the stock check, so a
// product appearing twice in one request is checked and decremented once
// against its combined quantity. Each request entry still becomes its own
// order line, all snapshotting the same price.
func (s *Service) PlaceOrder(ctx context.Context, userID int64, reqs []LineRequest) (domain.Order, error) {
	if len(reqs) == 0 {
		return domain.Order{}, ErrEmptyOrder
	}

	seen := make([]int64, 0, len(reqs))
	wanted := make(map[int64]int, len(reqs))
	for _, r := range reqs {
		if r.Quantity < 1 {
			return domain.Order{}, ErrEmptyOrder
		}
		if _, ok := wanted[r.ProductID]; !ok {
			seen = append(seen, r.ProductID)
		}
		wanted[r.ProductID] += r.Quantity
	}
	// Canonical lock order: concurrent placements over the same products
	// always acquire row locks ascending, so they cannot deadlock each other.
	slices.Sort(seen)

	var placed domain.Order
	err := s.uow.Do(ctx, func(tx OrderTx) error {
		// Lock every product row first; the locks are held to commit so a
		// concurrent placement on the same product waits here.
		products := make(map[int64]catalogdomain.Product, len(seen))
		for _, pid := range seen {
			p, err := tx.ProductForUpdate(ctx, pid)
			if errors.Is(err, catalogapp.ErrProductNotFound) {
				return &ProductNotFoundError{ProductID: pid}
			}
			if err != nil {
				return err
			}
			if wanted[pid] > p.Stock {
				return &InsufficientStockError{
					ProductID: p.ID,
					Name:      p.Name,
					Requested: wanted[pid],
					Available: p.Stock,
				}
			}
			products[pid] = p
		}

		lines := make([]domain.Line, 0, len(reqs))
		for _, r := range reqs {
			p := products[r.ProductID]
			p.Stock -= wanted[r.ProductID] // reflect the pending decrement in the response
			lines = append(lines, domain.Line{
				ProductID:       p.ID,
				Quantity:        r.Quantity,
				PriceAtPurchase: p.Price,
				Product:         &p,
			})
		}

		o := domain.NewOrder(userID, lines)
		if err := tx.InsertOrder(ctx, &o); err != nil {
			return err
		}
		for i := range o.Lines {
			o.Lines[i].OrderID = o.ID
			if err := tx.InsertLine(ctx, &o.Lines[i]); err != nil {
				return err
			}
		}
		for _, pid := range seen {
			if err := tx.DecrementStock(ctx, pid, wanted[pid]); err != nil {
				return err
			}
		}

		payload, err := json.Marshal(domain.NewOrderPlaced(o))
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, o.ID, domain.EventOrderPlaced, payload, tracing.Traceparent(ctx)); err != nil {
			return err
		}

		placed = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.log.InfoContext(ctx, "order placed",
		"order_id", placed.ID,
		"user_id", userID,
		"total", placed.TotalPrice.String(),
		"lines", len(placed.Lines),
	)
	return placed, nil
}

func (s *Service) ListForUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	return s.reader.ListByUser(ctx, userID)
}

func (s *Service) Get(ctx context.Context, id int64) (domain.Order, error) {
	return s.reader.Get(ctx, id)
}
