package modules

import (
	"expvar"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/vibely/account-service/internal/interface/http"
	"github.com/vibely/account-service/internal/interface/middleware"
	"github.com/vibely/account-service/pkg/helpers"
)

// AccountModule wires the account handlers and identity middleware into routes.
// Public: POST /register, POST /login, GET /user/:id, GET /search/users
// Protected (gateway identity header or bearer token):
//   GET /user, PUT /user, POST /change-password, PUT /user/flags

type AccountModule struct {
	Handler      *handlers.AccountHandler
	JWT          *helpers.JWTManager
	Redis        *redis.Client
	DebugMetrics bool
}

func NewAccountModule(h *handlers.AccountHandler, jwt *helpers.JWTManager, rdb *redis.Client, debugMetrics bool) *AccountModule {
	return &AccountModule{Handler: h, JWT: jwt, Redis: rdb, DebugMetrics: debugMetrics}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	// Credential endpoints get a tight per-IP limit
	registerLimiter := middleware.RateLimit(m.Redis, 10, time.Minute, middleware.KeyByIPAndPath(), nil)
	loginLimiter := middleware.RateLimit(m.Redis, 10, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/register", registerLimiter, m.Handler.Register)
	rg.POST("/login", loginLimiter, m.Handler.Login)
	rg.GET("/user/:id", m.Handler.GetUserByID)
	rg.GET("/search/users", m.Handler.SearchUsers)

	identity := middleware.Identity(m.JWT)
	rg.GET("/user", identity, m.Handler.GetMe)
	rg.PUT("/user", identity, m.Handler.UpdateProfile)
	rg.POST("/change-password", identity, m.Handler.ChangePassword)
	rg.PUT("/user/flags", identity, m.Handler.UpdateFlags)

	if m.DebugMetrics {
		rl := middleware.RateLimit(m.Redis, 120, time.Minute, middleware.KeyByIP(), middleware.AllowPrivateIP())
		rg.GET("/debug/vars", rl, gin.WrapH(expvar.Handler()))
	}
}
