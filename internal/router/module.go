package router

import "github.com/gin-gonic/gin"

// Module is a feature slice of the account API that registers its own routes
// and route-level middleware on the shared RouterGroup.
type Module interface {
	Register(rg *gin.RouterGroup)
}
