package handlers

import (
	"net/http"

	domain "github.com/geocoder89/storefront/internal/domain/catalog"
	"github.com/gin-gonic/gin"
)

func (h *CatalogHandler) ListCategories(ctx *gin.Context) {
	categories, version, err := h.svc.ListCategories(ctx.Request.Context())
	if err != nil {
		respondCatalogError(ctx, h.log, "load categories", err)
		return
	}

	setCollectionVersion(ctx, version)
	ctx.JSON(http.StatusOK, gin.H{"categories": categories, "version": version})
}

func (h *CatalogHandler) CreateCategory(ctx *gin.Context) {
	var req domain.CreateCategoryRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, ok := withIfMatch(ctx)
	if !ok {
		return
	}

	c, err := h.svc.CreateCategory(cctx, req)
	if err != nil {
		respondCatalogError(ctx, h.log, "add category", err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"category": c,
		"message":  "Category added successfully!",
	})
}

func (h *CatalogHandler) UpdateCategory(ctx *gin.Context) {
	var req domain.UpdateCategoryRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, ok := withIfMatch(ctx)
	if !ok {
		return
	}

	c, err := h.svc.UpdateCategory(cctx, ctx.Param("id"), req)
	if err != nil {
		respondCatalogError(ctx, h.log, "update category", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"category": c,
		"message":  "Category updated successfully!",
	})
}

func (h *CatalogHandler) DeleteCategory(ctx *gin.Context) {
	cctx, ok := withIfMatch(ctx)
	if !ok {
		return
	}

	res, err := h.svc.DeleteCategory(cctx, ctx.Param("id"))
	if err != nil {
		respondCatalogError(ctx, h.log, "delete category", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"category":         res.Category,
		"cascadedProducts": res.CascadedProducts,
		"message":          res.Message(),
	})
}
