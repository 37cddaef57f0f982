package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nvalerio/storefront-api/internal/auth/application"
	"github.com/nvalerio/storefront-api/internal/auth/domain"
)

type UserRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewUserRepository(log *slog.Logger, pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{log: log, pool: pool}
}

// uniqueViolation is the Postgres error code raised by the users.email
// unique constraint.
const uniqueViolation = "23505"

func (r *UserRepository) Insert(ctx context.Context, u *domain.User) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO users (name, email, password_hash, is_admin, created_at)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		u.Name, u.Email, u.PasswordHash, u.IsAdmin, u.CreatedAt).Scan(&u.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		// A concurrent register can slip past the pre-insert lookup; the
		// constraint is the authoritative check.
		return application.ErrEmailTaken
	}
	return err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.scanUser(ctx, `SELECT id, name, email, password_hash, is_admin, created_at FROM users WHERE email=$1`, email)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	return r.scanUser(ctx, `SELECT id, name, email, password_hash, is_admin, created_at FROM users WHERE id=$1`, id)
}

func (r *UserRepository) scanUser(ctx context.Context, query string, arg any) (domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, application.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

type TokenRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewTokenRepository(log *slog.Logger, pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{log: log, pool: pool}
}

func (r *TokenRepository) Insert(ctx context.Context, t domain.Token) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO api_tokens (digest, user_id, created_at, expires_at) VALUES ($1,$2,$3,$4)`,
		t.Digest, t.UserID, t.CreatedAt, t.ExpiresAt)
	return err
}

func (r *TokenRepository) Get(ctx context.Context, digest string) (domain.Token, error) {
	var t domain.Token
	err := r.pool.QueryRow(ctx, `SELECT digest, user_id, created_at, expires_at FROM api_tokens WHERE digest=$1`, digest).
		Scan(&t.Digest, &t.UserID, &t.CreatedAt, &t.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Token{}, application.ErrTokenInvalid
	}
	if err != nil {
		return domain.Token{}, err
	}
	return t, nil
}

func (r *TokenRepository) Delete(ctx context.Context, digest string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM api_tokens WHERE digest=$1`, digest)
	return err
}
