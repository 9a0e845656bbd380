package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"iris.app/engage/internal/metrics"
)

// SnapshotProvider mirrors metrics.Aggregator.
type SnapshotProvider interface {
	Snapshot() metrics.Snapshot
}

type MetricsHandler struct {
	provider SnapshotProvider
}

func NewMetricsHandler(provider SnapshotProvider) *MetricsHandler {
	return &MetricsHandler{provider: provider}
}

func (h *MetricsHandler) Snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.provider.Snapshot())
}
