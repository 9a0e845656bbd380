package router

import (
	"github.com/gin-gonic/gin"

	"iris.app/engage/internal/http/handler"
	"iris.app/engage/internal/http/middleware"
	"iris.app/engage/internal/queue"
	"iris.app/engage/internal/store"
)

type RouterConfig struct {
	AdminAPIKey string
	TraceHeader string
}

type Deps struct {
	Producer  queue.Producer
	Processor handler.DecisionProcessor
	Profiles  store.ProfileStore
	Promoter  handler.ProfilePromoter
	Metrics   handler.SnapshotProvider
}

func SetupRoutes(router *gin.Engine, deps Deps, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		messageHandler := handler.NewMessageHandler(deps.Producer, deps.Processor, cfg.TraceHeader)
		MessageRouter(v1.Group("/conversations"), messageHandler)

		profileHandler := handler.NewProfileHandler(deps.Profiles, deps.Promoter)
		ProfileRouter(v1.Group("/users"), profileHandler)

		metricsHandler := handler.NewMetricsHandler(deps.Metrics)
		AdminRouter(v1.Group("/admin", middleware.AdminAuth(cfg.AdminAPIKey)), metricsHandler)
	}
}
