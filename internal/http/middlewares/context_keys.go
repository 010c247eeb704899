package middlewares

// gin context keys
const (
	CtxRequestID = "request_id"
	CtxGuard     = "guard_result"
)
