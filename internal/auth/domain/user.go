package domain

import "time"

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Owns reports whether the user may access a resource owned by ownerID.
// Admins may access everything.
func (u User) Owns(ownerID int64) bool {
	return u.ID == ownerID || u.IsAdmin
}

// Token is an issued API token. Only the SHA-256 digest of the plain value is
// stored; the plain value is shown to the client once.
type Token struct {
	Digest    string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}
