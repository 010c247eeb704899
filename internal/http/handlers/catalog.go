package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/storefront/internal/cache"
	"github.com/geocoder89/storefront/internal/catalog"
	domain "github.com/geocoder89/storefront/internal/domain/catalog"
	"github.com/gin-gonic/gin"
)

type CatalogService interface {
	Browse(ctx context.Context, categoryID string) (catalog.View, error)

	ListCategories(ctx context.Context) ([]catalog.CategorySummary, int64, error)
	CreateCategory(ctx context.Context, req domain.CreateCategoryRequest) (domain.Category, error)
	UpdateCategory(ctx context.Context, id string, req domain.UpdateCategoryRequest) (domain.Category, error)
	DeleteCategory(ctx context.Context, id string) (catalog.DeleteCategoryResult, error)

	ListProducts(ctx context.Context) ([]catalog.ProductView, int64, error)
	CreateProduct(ctx context.Context, req domain.CreateProductRequest) (domain.Product, error)
	UpdateProduct(ctx context.Context, id string, req domain.UpdateProductRequest) (domain.Product, error)
	DeleteProduct(ctx context.Context, id string) (domain.Product, error)
}

type CatalogHandler struct {
	svc   CatalogService
	views *cache.Cache[catalog.View]
	log   *slog.Logger
}

// NewCatalogHandler serves both the public view and the admin flows. views may
// be nil to disable caching.
func NewCatalogHandler(svc CatalogService, views *cache.Cache[catalog.View], log *slog.Logger) *CatalogHandler {
	return &CatalogHandler{svc: svc, views: views, log: log}
}

func (h *CatalogHandler) Browse(ctx *gin.Context) {
	categoryID := strings.TrimSpace(ctx.Query("categoryId"))
	key := "view:" + categoryID

	if h.views != nil {
		if v, ok := h.views.Get(key); ok {
			RespondJSONWithETag(ctx, http.StatusOK, v)
			return
		}
	}

	// read before loading: a write that commits meanwhile bumps it
	var gen uint64
	if h.views != nil {
		gen = h.views.Generation()
	}

	v, err := h.svc.Browse(ctx.Request.Context(), categoryID)
	if err != nil {
		respondCatalogError(ctx, h.log, "load the catalog", err)
		return
	}

	if h.views != nil && cacheable(v, categoryID) {
		h.views.SetIfGeneration(key, v, gen)
	}

	RespondJSONWithETag(ctx, http.StatusOK, v)
}

// cacheable keeps arbitrary query strings out of the cache: only the full
// view and views of a live category are stored.
func cacheable(v catalog.View, categoryID string) bool {
	if categoryID == "" {
		return true
	}
	for _, c := range v.Categories {
		if c.ID == categoryID {
			return true
		}
	}
	return false
}
