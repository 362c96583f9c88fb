package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vibely/account-service/pkg/helpers"
	"github.com/vibely/account-service/pkg/response"
)

const CtxUserIDKey = "userID"

// IdentityHeader is set by the API gateway after it authenticates the caller.
const IdentityHeader = "X-User-ID"

// Identity resolves the caller identity for protected routes. The gateway
// header wins; a bearer access token is accepted as a fallback for direct
// callers. Requests without either are rejected with 401.
func Identity(jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := strings.TrimSpace(c.GetHeader(IdentityHeader)); uid != "" {
			c.Set(CtxUserIDKey, uid)
			c.Next()
			return
		}
		if auth := c.GetHeader("Authorization"); jwt != nil && strings.HasPrefix(auth, "Bearer ") {
			claims, err := jwt.ParseAccessToken(strings.TrimPrefix(auth, "Bearer "))
			if err == nil && claims.UserID != "" {
				c.Set(CtxUserIDKey, claims.UserID)
				c.Next()
				return
			}
		}
		response.AbortError(c, http.StatusUnauthorized, "user identity required", nil)
	}
}
