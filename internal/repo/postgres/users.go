package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, auth_id, email, role, created_at, updated_at`

// UsersRepo is the user directory.
type UsersRepo struct {
	pool *pgxpool.Pool
	obs  Observer
}

func NewUsersRepo(pool *pgxpool.Pool, obs Observer) *UsersRepo {
	return &UsersRepo{pool: pool, obs: observerOrNoop(obs)}
}

// Create checks for an existing auth id or email first; the unique indexes
// catch whatever slips between the check and the insert.
func (r *UsersRepo) Create(ctx context.Context, req user.SignUpRequest) (user.User, error) {
	var exists bool

	err := r.obs.ObserveDB("users.exists", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE auth_id = $1 OR email = $2)`,
			req.AuthID, req.Email,
		).Scan(&exists)
	})
	if err != nil {
		return user.User{}, err
	}
	if exists {
		return user.User{}, user.ErrConflict
	}

	now := time.Now().UTC()
	u := user.User{
		ID:        uuid.NewString(),
		AuthID:    req.AuthID,
		Email:     req.Email,
		Role:      user.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = r.obs.ObserveDB("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, auth_id, email, role, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			u.ID, u.AuthID, u.Email, string(u.Role), u.CreatedAt, u.UpdatedAt,
		)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrConflict
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByAuthID(ctx context.Context, authID string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_auth_id", `SELECT `+userColumns+` FROM users WHERE auth_id = $1`, authID)
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email", `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// SetRole updates the role in place and returns the new record.
func (r *UsersRepo) SetRole(ctx context.Context, authID string, role user.Role) (user.User, error) {
	return r.getOne(ctx, "users.set_role",
		`UPDATE users SET role = $2, updated_at = NOW()
		WHERE auth_id = $1
		RETURNING `+userColumns,
		authID, string(role),
	)
}

func (r *UsersRepo) getOne(ctx context.Context, op, query string, args ...any) (user.User, error) {
	var (
		u    user.User
		role string
	)

	err := r.obs.ObserveDB(op, func() error {
		err := r.pool.QueryRow(ctx, query, args...).Scan(
			&u.ID,
			&u.AuthID,
			&u.Email,
			&role,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			// a miss is not a DB failure
			return nil
		}
		return err
	})
	if err != nil {
		return user.User{}, err
	}
	if u.ID == "" {
		return user.User{}, user.ErrNotFound
	}

	u.Role = user.Role(role)
	return u, nil
}
