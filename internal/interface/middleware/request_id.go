package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id assigned by the API gateway.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware resolves the request id for the response envelope.
// The gateway's id is reused when present so traces correlate across
// services; otherwise a fresh one is generated. The id is echoed back
// in the response header either way.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
