package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nvalerio/storefront-api/internal/auth/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrTokenInvalid       = errors.New("token invalid or expired")
)

// Service implements the access layer: registration, login, and resolving a
// bearer token back to a user. Tokens are opaque random values; only their
// SHA-256 digest is persisted.
type Service struct {
	log      *slog.Logger
	users    UserRepository
	tokens   TokenRepository
	tokenTTL time.Duration
}

func NewService(log *slog.Logger, users UserRepository, tokens TokenRepository, tokenTTL time.Duration) *Service {
	return &Service{log: log, users: users, tokens: tokens, tokenTTL: tokenTTL}
}

func (s *Service) Register(ctx context.Context, name, email, password string) (domain.User, string, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return domain.User{}, "", ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return domain.User{}, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, "", err
	}

	u := domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Insert(ctx, &u); err != nil {
		return domain.User{}, "", err
	}

	token, err := s.issueToken(ctx, u.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	s.log.InfoContext(ctx, "user registered", "user_id", u.ID)
	return u, token, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return domain.User{}, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(ctx, u.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	s.log.InfoContext(ctx, "user logged in", "user_id", u.ID)
	return u, token, nil
}

// Authenticate resolves a plain bearer token to the user that owns it.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.User, error) {
	t, err := s.tokens.Get(ctx, digest(token))
	if err != nil {
		return domain.User{}, ErrTokenInvalid
	}
	if t.Expired(time.Now().UTC()) {
		_ = s.tokens.Delete(ctx, t.Digest)
		return domain.User{}, ErrTokenInvalid
	}
	u, err := s.users.GetByID(ctx, t.UserID)
	if err != nil {
		return domain.User{}, ErrTokenInvalid
	}
	return u, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Delete(ctx, digest(token))
}

func (s *Service) issueToken(ctx context.Context, userID int64) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	plain := hex.EncodeToString(raw)

	now := time.Now().UTC()
	t := domain.Token{
		Digest:    digest(plain),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenTTL),
	}
	if err := s.tokens.Insert(ctx, t); err != nil {
		return "", err
	}
	return plain, nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
