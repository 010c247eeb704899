package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/storefront/internal/identity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdentityRepo stores local identities and their sessions.
type IdentityRepo struct {
	pool *pgxpool.Pool
	obs  Observer
}

func NewIdentityRepo(pool *pgxpool.Pool, obs Observer) *IdentityRepo {
	return &IdentityRepo{pool: pool, obs: observerOrNoop(obs)}
}

func (r *IdentityRepo) CreateIdentity(ctx context.Context, id identity.Identity) error {
	err := r.obs.ObserveDB("identities.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO identities (id, email, password_hash, created_at)
			VALUES ($1,$2,$3,$4)`,
			id.ID, id.Email, id.PasswordHash, id.CreatedAt,
		)
		return err
	})
	if isUniqueViolation(err) {
		return identity.ErrEmailTaken
	}
	return err
}

func (r *IdentityRepo) GetIdentityByEmail(ctx context.Context, email string) (identity.Identity, error) {
	var id identity.Identity

	err := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM identities WHERE email = $1`,
		email,
	).Scan(&id.ID, &id.Email, &id.PasswordHash, &id.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.Identity{}, identity.ErrIdentityNotFound
		}
		return identity.Identity{}, err
	}
	return id, nil
}

// DeleteIdentity relies on ON DELETE CASCADE to drop the sessions.
func (r *IdentityRepo) DeleteIdentity(ctx context.Context, id string) error {
	return r.obs.ObserveDB("identities.delete", func() error {
		_, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
		return err
	})
}

func (r *IdentityRepo) CreateSession(ctx context.Context, row identity.SessionRow) error {
	return r.obs.ObserveDB("sessions.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO sessions (id, identity_id, token_hash, expires_at, revoked_at, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			row.ID, row.IdentityID, row.TokenHash, row.ExpiresAt, row.RevokedAt, row.CreatedAt,
		)
		return err
	})
}

func (r *IdentityRepo) GetSession(ctx context.Context, id string) (identity.SessionRow, error) {
	var row identity.SessionRow

	err := r.obs.ObserveDB("sessions.get", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT id, identity_id, token_hash, expires_at, revoked_at, created_at
			FROM sessions
			WHERE id = $1
		`, id).Scan(
			&row.ID,
			&row.IdentityID,
			&row.TokenHash,
			&row.ExpiresAt,
			&row.RevokedAt,
			&row.CreatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.SessionRow{}, identity.ErrSessionNotFound
		}
		return identity.SessionRow{}, err
	}
	return row, nil
}

// RevokeSession is idempotent.
func (r *IdentityRepo) RevokeSession(ctx context.Context, id string) error {
	return r.obs.ObserveDB("sessions.revoke", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE sessions
			SET revoked_at = COALESCE(revoked_at, NOW())
			WHERE id = $1
		`, id)
		return err
	})
}
