package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nvalerio/storefront-api/internal/catalog/application"
	"github.com/nvalerio/storefront-api/internal/catalog/domain"
	"github.com/nvalerio/storefront-api/internal/web"
)

type CatalogService interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id int64) (domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, id int64, u domain.Update) (domain.Product, error)
	Delete(ctx context.Context, id int64) error
}

type Handler struct {
	log     *slog.Logger
	service CatalogService
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service CatalogService) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("catalog-http"),
	}
}

const maxNameLen = 255

type productReq struct {
	Name  *string          `json:"name"`
	Price *decimal.Decimal `json:"price"`
	Stock *int             `json:"stock"`
}

// validate checks the decoded body. With partial=true absent fields are
// allowed (PUT/PATCH); present fields are validated either way.
func (req productReq) validate(partial bool) web.FieldErrors {
	fe := web.FieldErrors{}
	if req.Name == nil {
		if !partial {
			fe.Add("name", "The name field is required.")
		}
	} else if *req.Name == "" || len(*req.Name) > maxNameLen {
		fe.Add("name", "The name must be a non-empty string of at most 255 characters.")
	}
	if req.Price == nil {
		if !partial {
			fe.Add("price", "The price field is required.")
		}
	} else if req.Price.IsNegative() {
		fe.Add("price", "The price must be at least 0.")
	}
	if req.Stock == nil {
		if !partial {
			fe.Add("stock", "The stock field is required.")
		}
	} else if *req.Stock < 0 {
		fe.Add("stock", "The stock must be at least 0.")
	}
	return fe
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListProducts")
	defer span.End()

	products, err := h.service.List(ctx)
	if err != nil {
		h.log.ErrorContext(ctx, "list products failed", "err", err)
		web.Message(w, http.StatusInternalServerError, "could not list products")
		return
	}
	web.JSON(w, http.StatusOK, products)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetProduct")
	defer span.End()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		web.Message(w, http.StatusNotFound, "product not found")
		return
	}

	p, err := h.service.Get(ctx, id)
	if errors.Is(err, application.ErrProductNotFound) {
		web.Message(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "get product failed", "product_id", id, "err", err)
		web.Message(w, http.StatusInternalServerError, "could not fetch product")
		return
	}
	web.JSON(w, http.StatusOK, map[string]any{"product": p})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateProduct")
	defer span.End()

	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Message(w, http.StatusBadRequest, "invalid body")
		return
	}
	if fe := req.validate(false); !fe.Empty() {
		web.ValidationFailed(w, fe)
		return
	}

	p := domain.Product{Name: *req.Name, Price: *req.Price, Stock: *req.Stock}
	if err := h.service.Create(ctx, &p); err != nil {
		h.log.ErrorContext(ctx, "create product failed", "err", err)
		web.Message(w, http.StatusInternalServerError, "could not create product")
		return
	}
	web.JSON(w, http.StatusCreated, p)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateProduct")
	defer span.End()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		web.Message(w, http.StatusNotFound, "product not found")
		return
	}

	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Message(w, http.StatusBadRequest, "invalid body")
		return
	}
	if fe := req.validate(true); !fe.Empty() {
		web.ValidationFailed(w, fe)
		return
	}

	p, err := h.service.Update(ctx, id, domain.Update{Name: req.Name, Price: req.Price, Stock: req.Stock})
	if errors.Is(err, application.ErrProductNotFound) {
		web.Message(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "update product failed", "product_id", id, "err", err)
		web.Message(w, http.StatusInternalServerError, "could not update product")
		return
	}
	web.JSON(w, http.StatusOK, map[string]any{
		"message": "Product updated successfully",
		"product": p,
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteProduct")
	defer span.End()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		web.Message(w, http.StatusNotFound, "product not found")
		return
	}

	err = h.service.Delete(ctx, id)
	if errors.Is(err, application.ErrProductNotFound) {
		web.Message(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "delete product failed", "product_id", id, "err", err)
		web.Message(w, http.StatusInternalServerError, "could not delete product")
		return
	}
	web.Message(w, http.StatusOK, "Product deleted successfully")
}
