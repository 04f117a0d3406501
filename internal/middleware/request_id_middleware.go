package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"compartilar-backend-go/internal/core"
)

const (
	HeaderRequestID  = "X-Request-ID"
	ContextRequestID = "requestID"
)

// RequestID tags every request with an id, reusing a well-formed incoming
// X-Request-ID. The id, client IP and user agent are attached to the request
// context for audit logging.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		c.Set(ContextRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(core.WithRequestMeta(c.Request.Context(), core.RequestMeta{
			RequestID: id,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}))
		c.Next()
	}
}
