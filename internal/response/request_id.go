package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the Gin context key the envelope reads the
// request ID from.
const ContextKeyRequestID = "request_id"

// RequestIDMiddleware tags each request with an ID that flows into every
// envelope's metadata. A client-supplied X-Request-ID is kept so the
// frontend can correlate a failed submit with server logs; otherwise a
// fresh UUID is minted. The ID is echoed back in the response header
// either way.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}
