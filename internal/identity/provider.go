// Package identity models the identity provider: the collaborator that issues
// sessions and vouches for who the caller is. The Local provider is a
// self-hosted stand-in for a hosted one.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoSession means the caller is not signed in (missing, expired,
	// revoked or forged token).
	ErrNoSession          = errors.New("no session")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrSessionNotFound    = errors.New("session not found")
)

// Session is a verified sign-in.
type Session struct {
	ID        string    `json:"id"`
	AuthID    string    `json:"authId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Provider resolves a session token. Implementations return ErrNoSession when
// the token does not prove a live session and any other error when they could
// not tell.
type Provider interface {
	Session(ctx context.Context, token string) (Session, error)
}

type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type SessionRow struct {
	ID         string
	IdentityID string
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

type IdentityStore interface {
	CreateIdentity(ctx context.Context, id Identity) error
	GetIdentityByEmail(ctx context.Context, email string) (Identity, error)
	// DeleteIdentity removes the identity and its sessions. Deleting a
	// missing identity is not an error.
	DeleteIdentity(ctx context.Context, id string) error
}

type SessionStore interface {
	CreateSession(ctx context.Context, row SessionRow) error
	GetSession(ctx context.Context, id string) (SessionRow, error)
	RevokeSession(ctx context.Context, id string) error
}
