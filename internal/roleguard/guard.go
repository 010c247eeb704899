// Package roleguard answers one question: is the caller of this request an
// admin. Every failure to find out answers NonAdmin.
package roleguard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/identity"
)

const SessionCookie = "session"

type Decision int

const (
	Unauthenticated Decision = iota
	NonAdmin
	Admin
)

func (d Decision) String() string {
	switch d {
	case Admin:
		return "admin"
	case NonAdmin:
		return "non_admin"
	default:
		return "unauthenticated"
	}
}

type Directory interface {
	GetByAuthID(ctx context.Context, authID string) (user.User, error)
}

type Observer interface {
	ObserveGuardDecision(decision string)
}

// Result is the decision plus whatever was learned on the way to it. User is
// nil unless the directory returned a record.
type Result struct {
	Decision Decision
	Session  identity.Session
	User     *user.User
}

type Option func(*Guard)

func WithTimeout(d time.Duration) Option {
	return func(g *Guard) { g.timeout = d }
}

func WithLogger(log *slog.Logger) Option {
	return func(g *Guard) { g.log = log }
}

func WithObserver(o Observer) Option {
	return func(g *Guard) { g.observer = o }
}

type Guard struct {
	provider identity.Provider
	users    Directory
	timeout  time.Duration
	log      *slog.Logger
	observer Observer
}

func New(provider identity.Provider, users Directory, opts ...Option) *Guard {
	g := &Guard{
		provider: provider,
		users:    users,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve never caches: every call asks the provider and the directory.
func (g *Guard) Resolve(ctx context.Context, token string) Result {
	res := g.resolve(ctx, token)

	if g.observer != nil {
		g.observer.ObserveGuardDecision(res.Decision.String())
	}
	return res
}

func (g *Guard) resolve(ctx context.Context, token string) Result {
	if strings.TrimSpace(token) == "" {
		return Result{Decision: Unauthenticated}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	session, err := g.provider.Session(ctx, token)
	if err != nil {
		if errors.Is(err, identity.ErrNoSession) {
			return Result{Decision: Unauthenticated}
		}
		g.log.WarnContext(ctx, "role guard: identity provider failed", "err", err)
		return Result{Decision: NonAdmin}
	}

	u, err := g.users.GetByAuthID(ctx, session.AuthID)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			g.log.WarnContext(ctx, "role guard: directory lookup failed", "auth_id", session.AuthID, "err", err)
		}
		return Result{Decision: NonAdmin, Session: session}
	}

	res := Result{Decision: NonAdmin, Session: session, User: &u}
	if u.Role.IsAdmin() {
		res.Decision = Admin
	}

	g.log.DebugContext(ctx, "role guard decision", "auth_id", session.AuthID, "decision", res.Decision.String())
	return res
}

func (g *Guard) ResolveRequest(r *http.Request) Result {
	return g.Resolve(r.Context(), TokenFromRequest(r))
}

// TokenFromRequest prefers a bearer token and falls back to the session
// cookie.
func TokenFromRequest(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		if raw := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); raw != "" {
			return raw
		}
	}

	if c, err := r.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
