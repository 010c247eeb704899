package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/geocoder89/storefront/internal/catalog"
	"github.com/gin-gonic/gin"
)

const collectionVersionHeader = "X-Collection-Version"

func RespondJSONWithETag(ctx *gin.Context, status int, payload interface{}) {
	etag, err := buildETag(payload)
	if err != nil {
		ctx.JSON(status, payload)
		return
	}

	ctx.Header("ETag", etag)
	ctx.Header("Cache-Control", "no-cache")

	if ifNoneMatchMatches(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.JSON(status, payload)
}

func buildETag(payload interface{}) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(b)

	return `"` + hex.EncodeToString(sum[:]) + `"`, nil
}

func ifNoneMatchMatches(headerValue, currentETag string) bool {
	if strings.TrimSpace(headerValue) == "" || strings.TrimSpace(currentETag) == "" {
		return false
	}

	if strings.TrimSpace(headerValue) == "*" {
		return true
	}

	current := normalizeETag(currentETag)

	for _, part := range strings.Split(headerValue, ",") {
		if normalizeETag(part) == current {
			return true
		}
	}

	return false
}

func normalizeETag(raw string) string {
	v := strings.TrimSpace(raw)
	v = strings.TrimSpace(strings.TrimPrefix(v, "W/"))
	return v
}

func setCollectionVersion(ctx *gin.Context, version int64) {
	ctx.Header(collectionVersionHeader, strconv.FormatInt(version, 10))
}

// withIfMatch turns an If-Match collection version into a write precondition.
// Without the header the write is unconditional. A malformed header has
// already been answered with 400 when ok is false.
func withIfMatch(ctx *gin.Context) (context.Context, bool) {
	raw := normalizeETag(ctx.GetHeader("If-Match"))
	if raw == "" || raw == "*" {
		return ctx.Request.Context(), true
	}

	v, err := strconv.ParseInt(strings.Trim(raw, `"`), 10, 64)
	if err != nil || v < 0 {
		RespondBadRequest(ctx, "If-Match must carry a collection version", gin.H{"header": "If-Match"})
		return nil, false
	}

	return catalog.WithExpectedVersion(ctx.Request.Context(), v), true
}
