package router

import (
	"github.com/gin-gonic/gin"

	"iris.app/engage/internal/http/handler"
)

func MessageRouter(router *gin.RouterGroup, handler *handler.MessageHandler) {
	router.POST("/messages", handler.Submit)
	router.POST("/decide", handler.Decide)
}
