package middleware

import (
	"evcarbon-marketplace/pkg/correlation"

	"github.com/gin-gonic/gin"
)

// Correlation attaches a correlation id to every request. The id from the
// X-Correlation-ID header is reused when present, otherwise one is generated.
// The id lives only on the request context and is echoed back to the caller,
// so nothing leaks across requests.
func Correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, id := correlation.Ensure(c.Request.Context(), c.GetHeader(correlation.Header))
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(correlation.Header, id)
		c.Next()
	}
}
