package router

import (
	"github.com/gin-gonic/gin"

	"iris.app/engage/internal/http/handler"
)

func AdminRouter(router *gin.RouterGroup, handler *handler.MetricsHandler) {
	router.GET("/metrics", handler.Snapshot)
}
