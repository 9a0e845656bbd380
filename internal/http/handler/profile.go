package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"iris.app/engage/internal/http/dto"
	"iris.app/engage/internal/store"
)

// ProfilePromoter applies externally sourced profile patches. The tiered
// store's external path drops the user's hot sessions along with the
// durable merge, so in-flight conversations pick up the new facts.
type ProfilePromoter interface {
	PromoteProfileExternal(ctx context.Context, userID string, patch map[string]string) error
}

type ProfileHandler struct {
	profiles store.ProfileStore
	promoter ProfilePromoter
}

func NewProfileHandler(profiles store.ProfileStore, promoter ProfilePromoter) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, promoter: promoter}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("user_id")

	profile, err := h.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load profile", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, dto.ProfileResponse{UserID: userID, Profile: profile})
}

// Promote merges externally sourced profile facts, e.g. CRM imports.
func (h *ProfileHandler) Promote(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("user_id")

	var req dto.PromoteProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid promote request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.promoter.PromoteProfileExternal(ctx, userID, req.Patch); err != nil {
		slog.ErrorContext(ctx, "failed to promote profile", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to promote profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"promoted": true})
}
