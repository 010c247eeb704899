// Package actorctx carries the resolved caller through request contexts.
package actorctx

import (
	"context"

	"github.com/geocoder89/storefront/internal/roleguard"
)

type key struct{}

func WithResult(ctx context.Context, res roleguard.Result) context.Context {
	return context.WithValue(ctx, key{}, res)
}

func ResultFrom(ctx context.Context) (roleguard.Result, bool) {
	res, ok := ctx.Value(key{}).(roleguard.Result)
	return res, ok
}

// AuthIDFrom returns the identity id of a signed-in caller.
func AuthIDFrom(ctx context.Context) (string, bool) {
	res, ok := ResultFrom(ctx)
	if !ok || res.Decision == roleguard.Unauthenticated {
		return "", false
	}
	return res.Session.AuthID, res.Session.AuthID != ""
}
