package observability

import (
	"errors"

	"github.com/geocoder89/storefront/internal/domain/catalog"
)

func (p *Prom) ObserveCatalogMutation(op string, err error) {
	p.CatalogMutations.WithLabelValues(op, mutationResult(err)).Inc()
}

func mutationResult(err error) string {
	var verr *catalog.ValidationError

	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr), errors.Is(err, catalog.ErrNoCategories):
		return "validation"
	case errors.Is(err, catalog.ErrNotFound):
		return "not_found"
	case errors.Is(err, catalog.ErrVersionConflict):
		return "conflict"
	default:
		return "error"
	}
}
