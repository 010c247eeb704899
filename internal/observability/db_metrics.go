package observability

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/storefront/internal/domain/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbOps are the logical operations the postgres repos report. Anything else
// is folded into "other" so a typo cannot mint a new series.
var dbOps = map[string]struct{}{
	"catalog.load":        {},
	"catalog.replace":     {},
	"catalog.replace_all": {},
	"users.create":        {},
	"users.exists":        {},
	"users.get_by_auth_id": {},
	"users.get_by_email":  {},
	"users.set_role":      {},
	"identities.create":   {},
	"identities.delete":   {},
	"sessions.create":     {},
	"sessions.get":        {},
	"sessions.revoke":     {},
}

func dbOp(op string) string {
	if _, ok := dbOps[op]; ok {
		return op
	}
	return "other"
}

// ObserveDB times fn under op. A missing row is a normal answer and a lost
// If-Match is the caller's conflict, so neither counts as a DB error.
func (p *Prom) ObserveDB(op string, fn func() error) error {
	op = dbOp(op)
	start := time.Now()
	err := fn()

	status := "ok"
	switch {
	case err == nil, errors.Is(err, pgx.ErrNoRows):
	case errors.Is(err, catalog.ErrVersionConflict):
		status = "conflict"
	default:
		status = "error"
		p.DbErrorsTotal.WithLabelValues(op, classifyDBErr(err)).Inc()
	}

	p.DbQueryDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

func classifyDBErr(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return "connection"
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		if pgconn.SafeToRetry(err) {
			return "connection"
		}
		return "unknown"
	}

	switch pgErr.Code {
	case "23505":
		// duplicate email or auth id
		return "unique_violation"
	case "23503":
		return "foreign_key_violation"
	case "40001", "40P01", "55P03":
		// FOR UPDATE on a catalog row lost to another writer
		return "lock_contention"
	case "57014":
		return "timeout"
	case "42P01", "42703":
		return "schema"
	}

	if len(pgErr.Code) >= 2 {
		return "pg_class_" + pgErr.Code[:2]
	}
	return "unknown"
}
