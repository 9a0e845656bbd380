package router

import (
	"github.com/gin-gonic/gin"

	"iris.app/engage/internal/http/handler"
)

func ProfileRouter(router *gin.RouterGroup, handler *handler.ProfileHandler) {
	router.GET("/:user_id/profile", handler.Get)
	router.POST("/:user_id/profile/promote", handler.Promote)
}
