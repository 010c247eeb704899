package db

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/geocoder89/storefront/internal/domain/user"
)

type AdminDirectory interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	SetRole(ctx context.Context, authID string, role user.Role) (user.User, error)
}

// EnsureAdmin promotes the directory user with the given email. A missing
// user is not an error: the bootstrap runs again on the next start.
func EnsureAdmin(ctx context.Context, users AdminDirectory, email string, log *slog.Logger) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	u, err := users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			log.WarnContext(ctx, "admin bootstrap: user not registered yet", "email", email)
			return nil
		}
		return err
	}

	if u.Role.IsAdmin() {
		return nil
	}

	if _, err := users.SetRole(ctx, u.AuthID, user.RoleAdmin); err != nil {
		return err
	}

	log.InfoContext(ctx, "admin bootstrap: user promoted", "email", email, "auth_id", u.AuthID)
	return nil
}
