package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	authhttp "github.com/nvalerio/storefront-api/internal/auth/infrastructure/http"
	"github.com/nvalerio/storefront-api/internal/order/application"
	"github.com/nvalerio/storefront-api/internal/order/domain"
	"github.com/nvalerio/storefront-api/internal/web"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, userID int64, reqs []application.LineRequest) (domain.Order, error)
	ListForUser(ctx context.Context, userID int64) ([]domain.Order, error)
	Get(ctx context.Context, id int64) (domain.Order, error)
}

// ProductChecker is the slice of the catalog used during request validation.
type ProductChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type Handler struct {
	log      *slog.Logger
	service  OrderService
	products ProductChecker
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, service OrderService, products ProductChecker) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		products: products,
		tracer:   otel.Tracer("order-http"),
	}
}

type createOrderReq struct {
	Items []orderItemReq `json:"items"`
}

type orderItemReq struct {
	ProductID *int64 `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

// validate covers request shape plus product existence, before any
// transactional work. Existence is re-checked under lock during placement;
// this pass only exists to report 422 field errors the way a schema
// validator would.
func (h *Handler) validate(ctx context.Context, req createOrderReq) (web.FieldErrors, []application.LineRequest, error) {
	fe := web.FieldErrors{}
	if len(req.Items) == 0 {
		fe.Add("items", "The items field is required and must contain at least one entry.")
		return fe, nil, nil
	}

	lines := make([]application.LineRequest, 0, len(req.Items))
	for i, item := range req.Items {
		switch {
		case item.ProductID == nil:
			fe.Add(fmt.Sprintf("items.%d.product_id", i), "The product_id field is required.")
		default:
			exists, err := h.products.Exists(ctx, *item.ProductID)
			if err != nil {
				return nil, nil, fmt.Errorf("check product %d: %w", *item.ProductID, err)
			}
			if !exists {
				fe.Add(fmt.Sprintf("items.%d.product_id", i), "The selected product_id is invalid.")
			}
		}
		if item.Quantity == nil || *item.Quantity < 1 {
			fe.Add(fmt.Sprintf("items.%d.quantity", i), "The quantity must be an integer of at least 1.")
		}
		if fe.Empty() {
			lines = append(lines, application.LineRequest{ProductID: *item.ProductID, Quantity: *item.Quantity})
		}
	}
	if !fe.Empty() {
		return fe, nil, nil
	}
	return fe, lines, nil
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PlaceOrder")
	defer span.End()

	user, ok := authhttp.UserFromContext(ctx)
	if !ok {
		web.Message(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Message(w, http.StatusBadRequest, "invalid body")
		return
	}

	fe, lines, err := h.validate(ctx, req)
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "order validation failed", "user_id", user.ID, "err", err)
		web.Message(w, http.StatusInternalServerError, "could not validate order")
		return
	}
	if !fe.Empty() {
		web.ValidationFailed(w, fe)
		return
	}

	order, err := h.service.PlaceOrder(ctx, user.ID, lines)
	if err != nil {
		span.RecordError(err)
		h.log.WarnContext(ctx, "order placement failed", "user_id", user.ID, "err", err)
		web.JSON(w, http.StatusBadRequest, map[string]string{
			"message": "Failed to create order",
			"error":   placementErrorMessage(err),
		})
		return
	}

	web.JSON(w, http.StatusCreated, map[string]any{
		"message": "Order created successfully",
		"order":   order,
	})
}

// placementErrorMessage keeps storage detail out of business-failure
// responses while passing the domain errors through verbatim.
func placementErrorMessage(err error) string {
	var notFound *application.ProductNotFoundError
	var noStock *application.InsufficientStockError
	switch {
	case errors.As(err, &notFound), errors.As(err, &noStock), errors.Is(err, application.ErrEmptyOrder):
		return err.Error()
	default:
		return "could not place order"
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListOrders")
	defer span.End()

	user, ok := authhttp.UserFromContext(ctx)
	if !ok {
		web.Message(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	orders, err := h.service.ListForUser(ctx, user.ID)
	if err != nil {
		h.log.ErrorContext(ctx, "list orders failed", "user_id", user.ID, "err", err)
		web.Message(w, http.StatusInternalServerError, "could not list orders")
		return
	}
	web.JSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	user, ok := authhttp.UserFromContext(ctx)
	if !ok {
		web.Message(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		web.Message(w, http.StatusNotFound, "order not found")
		return
	}

	order, err := h.service.Get(ctx, id)
	if errors.Is(err, application.ErrOrderNotFound) {
		web.Message(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "get order failed", "order_id", id, "err", err)
		web.Message(w, http.StatusInternalServerError, "could not fetch order")
		return
	}

	if !user.Owns(order.UserID) {
		web.Message(w, http.StatusForbidden, "Unauthorized access to this order")
		return
	}
	web.JSON(w, http.StatusOK, map[string]any{"order": order})
}
