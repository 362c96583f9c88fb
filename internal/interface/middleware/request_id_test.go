package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func requestIDRouter() (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	var seen string
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		seen = c.GetString("request_id")
		c.Status(http.StatusOK)
	})
	return r, &seen
}

func TestRequestID_ReusesGatewayHeader(t *testing.T) {
	r, seen := requestIDRouter()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "gw-abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "gw-abc-123", *seen)
	assert.Equal(t, "gw-abc-123", w.Header().Get(RequestIDHeader))
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	r, seen := requestIDRouter()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.NotEmpty(t, *seen)
	assert.Equal(t, *seen, w.Header().Get(RequestIDHeader))
}
