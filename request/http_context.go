package request

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HTTPMiddleware opens an ambient scope for every request. The request id is
// taken from X-Request-Id when present and echoed back on the response.
// Auth middleware running earlier may leave a *Principal under GinUserKey.
func HTTPMiddleware(opts ...ContextOption) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := NewState(opts...)
		state.Apply(StateFromGin(c)...)

		c.Request = c.Request.WithContext(Scope(c.Request.Context(), state))
		c.Set(RequestIDKey.String(), state.RequestID())
		c.Header(HeaderRequestID, state.RequestID())
		c.Next()
	}
}

// StateFromGin extracts identity options from an inbound gin request.
func StateFromGin(c *gin.Context) []ContextOption {
	reqID := c.GetHeader(HeaderRequestID)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	opts := []ContextOption{
		WithRequestID(reqID),
		WithClientIP(c.ClientIP()),
	}
	if platform := c.GetHeader(HeaderPlatform); platform != "" {
		opts = append(opts, WithPlatform(platform))
	}
	if traceID := c.GetHeader("TraceID"); traceID != "" {
		opts = append(opts, WithTraceID(traceID))
	}
	if raw, exists := c.Get(GinUserKey); exists {
		if user, ok := raw.(*Principal); ok && user != nil {
			opts = append(opts, WithUserID(user.ID), WithUser(user))
		}
	}
	return opts
}
