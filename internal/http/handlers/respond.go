package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	domain "github.com/geocoder89/storefront/internal/domain/catalog"
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	if v, ok := ctx.Get(middlewares.CtxRequestID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}

	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, "forbidden", message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

// respondCatalogError maps catalog failures onto the error envelope. Anything
// unexpected is logged and reported with the generic retry message.
func respondCatalogError(ctx *gin.Context, log *slog.Logger, op string, err error) {
	var verr *domain.ValidationError

	switch {
	case errors.As(err, &verr):
		details := gin.H{}
		if verr.Field != "" {
			details["field"] = verr.Field
		}
		RespondError(ctx, http.StatusBadRequest, "validation_error", verr.Message, details)
	case errors.Is(err, domain.ErrNotFound):
		RespondNotFound(ctx, "Item not found")
	case errors.Is(err, domain.ErrNoCategories):
		RespondConflict(ctx, "no_categories", "Create a category before adding products")
	case errors.Is(err, domain.ErrVersionConflict):
		RespondError(ctx, http.StatusPreconditionFailed, "version_conflict", "The catalog changed since you loaded it. Reload and try again.", nil)
	default:
		log.ErrorContext(ctx.Request.Context(), "catalog operation failed", "op", op, "err", err)
		RespondInternal(ctx, "Failed to "+op+", please try again")
	}
}
