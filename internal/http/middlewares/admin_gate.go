package middlewares

import (
	"net/http"

	"github.com/geocoder89/storefront/internal/actorctx"
	"github.com/geocoder89/storefront/internal/roleguard"
	"github.com/gin-gonic/gin"
)

type Resolver interface {
	ResolveRequest(r *http.Request) roleguard.Result
}

// AdminGate guards page routes: no session goes to the login page, a signed
// in non-admin goes back to the storefront root.
func AdminGate(guard Resolver, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := guard.ResolveRequest(c.Request)

		switch res.Decision {
		case roleguard.Unauthenticated:
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		case roleguard.NonAdmin:
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}

		setResult(c, res)
		c.Next()
	}
}

// RequireAdmin is the JSON flavour of AdminGate for /api/admin routes.
func RequireAdmin(guard Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := guard.ResolveRequest(c.Request)

		switch res.Decision {
		case roleguard.Unauthenticated:
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "Sign in to continue")
			return
		case roleguard.NonAdmin:
			abortJSON(c, http.StatusForbidden, "forbidden", "Admin role required")
			return
		}

		setResult(c, res)
		c.Next()
	}
}

// ResolveCaller records the guard result without enforcing anything. Handlers
// that answer differently per decision read it back with GuardResult.
func ResolveCaller(guard Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		setResult(c, guard.ResolveRequest(c.Request))
		c.Next()
	}
}

func GuardResult(c *gin.Context) (roleguard.Result, bool) {
	v, ok := c.Get(CtxGuard)
	if !ok {
		return roleguard.Result{}, false
	}
	res, ok := v.(roleguard.Result)
	return res, ok
}

func setResult(c *gin.Context, res roleguard.Result) {
	c.Set(CtxGuard, res)
	c.Request = c.Request.WithContext(actorctx.WithResult(c.Request.Context(), res))
}

func abortJSON(c *gin.Context, status int, code, message string) {
	reqID, _ := c.Get(CtxRequestID)

	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":      code,
			"message":   message,
			"requestId": reqID,
		},
	})
}
