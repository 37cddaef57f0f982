package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authdomain "github.com/nvalerio/storefront-api/internal/auth/domain"
	authhttp "github.com/nvalerio/storefront-api/internal/auth/infrastructure/http"
	"github.com/nvalerio/storefront-api/internal/order/application"
	"github.com/nvalerio/storefront-api/internal/order/domain"
	"github.com/nvalerio/storefront-api/pkg/logging"
)

type stubService struct {
	placeFn func(ctx context.Context, userID int64, reqs []application.LineRequest) (domain.Order, error)
	listFn  func(ctx context.Context, userID int64) ([]domain.Order, error)
	getFn   func(ctx context.Context, id int64) (domain.Order, error)
}

func (s *stubService) PlaceOrder(ctx context.Context, userID int64, reqs []application.LineRequest) (domain.Order, error) {
	return s.placeFn(ctx, userID, reqs)
}

func (s *stubService) ListForUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	return s.listFn(ctx, userID)
}

func (s *stubService) Get(ctx context.Context, id int64) (domain.Order, error) {
	return s.getFn(ctx, id)
}

type stubChecker struct {
	existing map[int64]bool
	err      error
}

func (c *stubChecker) Exists(ctx context.Context, id int64) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return c.existing[id], nil
}

func newTestRouter(svc OrderService, checker ProductChecker) http.Handler {
	h := NewHandler(logging.New(), svc, checker)
	r := chi.NewRouter()
	r.Get("/orders", h.List)
	r.Post("/orders", h.Create)
	r.Get("/orders/{id}", h.Get)
	return r
}

func asUser(r *http.Request, u authdomain.User) *http.Request {
	return r.WithContext(authhttp.ContextWithUser(r.Context(), u))
}

var customer = authdomain.User{ID: 42, Name: "Ana", Email: "ana@example.com"}

func TestCreateOrderValidation(t *testing.T) {
	router := newTestRouter(&stubService{}, &stubChecker{existing: map[int64]bool{1: true}})

	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"empty items", `{"items":[]}`, "items"},
		{"missing items", `{}`, "items"},
		{"missing quantity", `{"items":[{"product_id":1}]}`, "items.0.quantity"},
		{"zero quantity", `{"items":[{"product_id":1,"quantity":0}]}`, "items.0.quantity"},
		{"missing product id", `{"items":[{"quantity":1}]}`, "items.0.product_id"},
		{"unknown product id", `{"items":[{"product_id":99,"quantity":1}]}`, "items.0.product_id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := asUser(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(tc.body)), customer)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			var body struct {
				Errors map[string][]string `json:"errors"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body.Errors, tc.field)
		})
	}
}

func TestCreateOrderExistenceCheckFailureIs500(t *testing.T) {
	router := newTestRouter(&stubService{}, &stubChecker{err: assert.AnError})

	req := asUser(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"items":[{"product_id":1,"quantity":1}]}`)), customer)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// A repository failure is not a validation failure.
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "errors")
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestCreateOrderSuccess(t *testing.T) {
	placed := domain.Order{
		ID:         7,
		UserID:     42,
		TotalPrice: decimal.RequireFromString("37.00"),
		Lines: []domain.Line{
			{ID: 1, OrderID: 7, ProductID: 1, Quantity: 3, PriceAtPurchase: decimal.RequireFromString("10.00")},
			{ID: 2, OrderID: 7, ProductID: 2, Quantity: 2, PriceAtPurchase: decimal.RequireFromString("3.50")},
		},
	}
	svc := &stubService{
		placeFn: func(ctx context.Context, userID int64, reqs []application.LineRequest) (domain.Order, error) {
			assert.Equal(t, int64(42), userID)
			require.Len(t, reqs, 2)
			assert.Equal(t, application.LineRequest{ProductID: 1, Quantity: 3}, reqs[0])
			return placed, nil
		},
	}
	router := newTestRouter(svc, &stubChecker{existing: map[int64]bool{1: true, 2: true}})

	body := `{"items":[{"product_id":1,"quantity":3},{"product_id":2,"quantity":2}]}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)), customer)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Message string `json:"message"`
		Order   struct {
			ID    int64  `json:"id"`
			Total string `json:"total_price"`
			Items []struct {
				ProductID int64 `json:"product_id"`
			} `json:"items"`
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Order created successfully", resp.Message)
	assert.Equal(t, int64(7), resp.Order.ID)
	assert.Len(t, resp.Order.Items, 2)
}

func TestCreateOrderBusinessFailure(t *testing.T) {
	svc := &stubService{
		placeFn: func(ctx context.Context, userID int64, reqs []application.LineRequest) (domain.Order, error) {
			return domain.Order{}, &application.InsufficientStockError{ProductID: 2, Name: "Mouse pad", Requested: 3, Available: 2}
		},
	}
	router := newTestRouter(svc, &stubChecker{existing: map[int64]bool{2: true}})

	req := asUser(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"items":[{"product_id":2,"quantity":3}]}`)), customer)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to create order", resp["message"])
	assert.Contains(t, resp["error"], "Mouse pad")
}

func TestCreateOrderHidesStorageErrors(t *testing.T) {
	svc := &stubService{
		placeFn: func(ctx context.Context, userID int64, reqs []application.LineRequest) (domain.Order, error) {
			return domain.Order{}, assert.AnError
		},
	}
	router := newTestRouter(svc, &stubChecker{existing: map[int64]bool{1: true}})

	req := asUser(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"items":[{"product_id":1,"quantity":1}]}`)), customer)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestGetOrderOwnership(t *testing.T) {
	order := domain.Order{ID: 7, UserID: 42}
	svc := &stubService{
		getFn: func(ctx context.Context, id int64) (domain.Order, error) {
			if id != 7 {
				return domain.Order{}, application.ErrOrderNotFound
			}
			return order, nil
		},
	}
	router := newTestRouter(svc, &stubChecker{})

	cases := []struct {
		name string
		user authdomain.User
		want int
	}{
		{"owner", authdomain.User{ID: 42}, http.StatusOK},
		{"other user", authdomain.User{ID: 43}, http.StatusForbidden},
		{"admin", authdomain.User{ID: 1, IsAdmin: true}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := asUser(httptest.NewRequest(http.MethodGet, "/orders/7", nil), tc.user)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	t.Run("missing order", func(t *testing.T) {
		req := asUser(httptest.NewRequest(http.MethodGet, "/orders/999", nil), customer)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListOrders(t *testing.T) {
	svc := &stubService{
		listFn: func(ctx context.Context, userID int64) ([]domain.Order, error) {
			assert.Equal(t, int64(42), userID)
			return []domain.Order{{ID: 1, UserID: 42}, {ID: 2, UserID: 42}}, nil
		},
	}
	router := newTestRouter(svc, &stubChecker{})

	req := asUser(httptest.NewRequest(http.MethodGet, "/orders", nil), customer)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Orders []domain.Order `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Orders, 2)
}

func TestOrdersRequireAuthenticatedUser(t *testing.T) {
	router := newTestRouter(&stubService{}, &stubChecker{})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"items":[{"product_id":1,"quantity":1}]}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
