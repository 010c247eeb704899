package handlers

import (
	"net/http"

	domain "github.com/geocoder89/storefront/internal/domain/catalog"
	"github.com/gin-gonic/gin"
)

func (h *CatalogHandler) ListProducts(ctx *gin.Context) {
	products, version, err := h.svc.ListProducts(ctx.Request.Context())
	if err != nil {
		respondCatalogError(ctx, h.log, "load products", err)
		return
	}

	setCollectionVersion(ctx, version)
	ctx.JSON(http.StatusOK, gin.H{"products": products, "version": version})
}

func (h *CatalogHandler) CreateProduct(ctx *gin.Context) {
	var req domain.CreateProductRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, ok := withIfMatch(ctx)
	if !ok {
		return
	}

	p, err := h.svc.CreateProduct(cctx, req)
	if err != nil {
		respondCatalogError(ctx, h.log, "add product", err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"product": p,
		"message": "Product added successfully!",
	})
}

func (h *CatalogHandler) UpdateProduct(ctx *gin.Context) {
	var req domain.UpdateProductRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, ok := withIfMatch(ctx)
	if !ok {
		return
	}

	p, err := h.svc.UpdateProduct(cctx, ctx.Param("id"), req)
	if err != nil {
		respondCatalogError(ctx, h.log, "update product", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"product": p,
		"message": "Product updated successfully!",
	})
}

func (h *CatalogHandler) DeleteProduct(ctx *gin.Context) {
	cctx, ok := withIfMatch(ctx)
	if !ok {
		return
	}

	p, err := h.svc.DeleteProduct(cctx, ctx.Param("id"))
	if err != nil {
		respondCatalogError(ctx, h.log, "delete product", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"product": p,
		"message": "Product deleted successfully!",
	})
}
