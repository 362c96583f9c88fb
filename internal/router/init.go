package router

import (
	"github.com/redis/go-redis/v9"

	handlers "github.com/vibely/account-service/internal/interface/http"
	"github.com/vibely/account-service/internal/router/modules"
	"github.com/vibely/account-service/pkg/helpers"
)

// Deps carries the components constructed at startup. Everything is built in
// cmd/main.go and passed down explicitly; there is no ambient global state.
type Deps struct {
	Handler      *handlers.AccountHandler
	JWT          *helpers.JWTManager
	Redis        *redis.Client
	DebugMetrics bool
}

// InitModules registers all application modules with the router registry
func InitModules(r *Registry, d Deps) {
	r.Add(modules.NewAccountModule(d.Handler, d.JWT, d.Redis, d.DebugMetrics))
}
