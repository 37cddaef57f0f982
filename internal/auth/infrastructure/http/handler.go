package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nvalerio/storefront-api/internal/auth/application"
	"github.com/nvalerio/storefront-api/internal/auth/domain"
	"github.com/nvalerio/storefront-api/internal/web"
)

type AuthService interface {
	Register(ctx context.Context, name, email, password string) (domain.User, string, error)
	Login(ctx context.Context, email, password string) (domain.User, string, error)
	Authenticate(ctx context.Context, token string) (domain.User, error)
	Logout(ctx context.Context, token string) error
}

type Handler struct {
	log     *slog.Logger
	service AuthService
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service AuthService) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("auth-http"),
	}
}

const minPasswordLen = 8

type registerReq struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type loginReq struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Register")
	defer span.End()

	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Message(w, http.StatusBadRequest, "invalid body")
		return
	}

	fe := web.FieldErrors{}
	if req.Name == nil || *req.Name == "" {
		fe.Add("name", "The name field is required.")
	}
	if req.Email == nil || *req.Email == "" {
		fe.Add("email", "The email field is required.")
	} else if _, err := mail.ParseAddress(*req.Email); err != nil {
		fe.Add("email", "The email must be a valid email address.")
	}
	if req.Password == nil || *req.Password == "" {
		fe.Add("password", "The password field is required.")
	} else if len(*req.Password) < minPasswordLen {
		fe.Add("password", "The password must be at least 8 characters.")
	}
	if !fe.Empty() {
		web.ValidationFailed(w, fe)
		return
	}

	u, token, err := h.service.Register(ctx, *req.Name, *req.Email, *req.Password)
	if errors.Is(err, application.ErrEmailTaken) {
		fe.Add("email", "The email has already been taken.")
		web.ValidationFailed(w, fe)
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "register failed", "err", err)
		web.Message(w, http.StatusInternalServerError, "could not register user")
		return
	}
	web.JSON(w, http.StatusCreated, map[string]any{"user": u, "token": token})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Login")
	defer span.End()

	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Message(w, http.StatusBadRequest, "invalid body")
		return
	}

	fe := web.FieldErrors{}
	if req.Email == nil || *req.Email == "" {
		fe.Add("email", "The email field is required.")
	}
	if req.Password == nil || *req.Password == "" {
		fe.Add("password", "The password field is required.")
	}
	if !fe.Empty() {
		web.ValidationFailed(w, fe)
		return
	}

	u, token, err := h.service.Login(ctx, *req.Email, *req.Password)
	if errors.Is(err, application.ErrInvalidCredentials) {
		web.Message(w, http.StatusUnauthorized, "Invalid credentials.")
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "login failed", "err", err)
		web.Message(w, http.StatusInternalServerError, "could not log in")
		return
	}
	web.JSON(w, http.StatusOK, map[string]any{"user": u, "token": token})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Logout")
	defer span.End()

	if err := h.service.Logout(ctx, bearerToken(r)); err != nil {
		h.log.ErrorContext(ctx, "logout failed", "err", err)
		web.Message(w, http.StatusInternalServerError, "could not log out")
		return
	}
	web.Message(w, http.StatusOK, "Logged out")
}

func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		web.Message(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	web.JSON(w, http.StatusOK, map[string]any{"user": u})
}
