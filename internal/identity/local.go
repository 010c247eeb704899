package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/storefront/internal/auth"
	"github.com/geocoder89/storefront/internal/security"
	"github.com/google/uuid"
)

// Local issues and verifies its own sessions. Passwords are bcrypt hashed,
// sessions are signed tokens whose hash is kept so they can be revoked.
type Local struct {
	identities IdentityStore
	sessions   SessionStore
	tokens     *auth.Manager
	now        func() time.Time
}

func NewLocal(identities IdentityStore, sessions SessionStore, tokens *auth.Manager) *Local {
	return &Local{
		identities: identities,
		sessions:   sessions,
		tokens:     tokens,
		now:        time.Now,
	}
}

// Register creates an identity; the returned id is the external identity id
// the user directory keys on.
func (l *Local) Register(ctx context.Context, email, password string) (Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := security.HashPassword(password)
	if err != nil {
		return Identity{}, err
	}

	id := Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    l.now().UTC(),
	}

	if err := l.identities.CreateIdentity(ctx, id); err != nil {
		return Identity{}, err
	}

	return id, nil
}

// Unregister removes an identity whose sign up could not be completed, so
// the email can be registered again.
func (l *Local) Unregister(ctx context.Context, identityID string) error {
	return l.identities.DeleteIdentity(ctx, identityID)
}

// SignIn checks the credentials and opens a session.
func (l *Local) SignIn(ctx context.Context, email, password string) (string, Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	id, err := l.identities.GetIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return "", Session{}, ErrInvalidCredentials
		}
		return "", Session{}, err
	}

	if err := security.CheckPassword(id.PasswordHash, password); err != nil {
		return "", Session{}, ErrInvalidCredentials
	}

	return l.open(ctx, id)
}

func (l *Local) open(ctx context.Context, id Identity) (string, Session, error) {
	raw, jti, expiresAt, err := l.tokens.IssueSession(id.ID, id.Email)
	if err != nil {
		return "", Session{}, fmt.Errorf("issue session: %w", err)
	}

	row := SessionRow{
		ID:         jti,
		IdentityID: id.ID,
		TokenHash:  l.tokens.HashToken(raw),
		ExpiresAt:  expiresAt,
		CreatedAt:  l.now().UTC(),
	}

	if err := l.sessions.CreateSession(ctx, row); err != nil {
		return "", Session{}, fmt.Errorf("store session: %w", err)
	}

	return raw, Session{ID: jti, AuthID: id.ID, Email: id.Email, ExpiresAt: expiresAt}, nil
}

func (l *Local) Session(ctx context.Context, token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrNoSession
	}

	claims, err := l.tokens.VerifySession(token)
	if err != nil {
		return Session{}, ErrNoSession
	}

	row, err := l.sessions.GetSession(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Session{}, ErrNoSession
		}
		return Session{}, err
	}

	// the hash check stops a token minted for another session id
	if row.RevokedAt != nil || l.now().UTC().After(row.ExpiresAt) || row.TokenHash != l.tokens.HashToken(token) {
		return Session{}, ErrNoSession
	}

	return Session{
		ID:        row.ID,
		AuthID:    claims.AuthID(),
		Email:     claims.Email,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

// SignOut revokes the session behind token. Signing out twice is not an error.
func (l *Local) SignOut(ctx context.Context, token string) error {
	s, err := l.Session(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil
		}
		return err
	}

	return l.sessions.RevokeSession(ctx, s.ID)
}
