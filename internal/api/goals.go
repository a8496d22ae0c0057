package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gymfuel/gymfuel-sync/internal/models"
	"github.com/gymfuel/gymfuel-sync/internal/netmon"
	"github.com/gymfuel/gymfuel-sync/internal/service"
)

type GoalsHandler struct {
	offline *service.OfflineDataService
	sync    *service.SyncService
	monitor *netmon.Monitor
	log     *logrus.Logger
}

func NewGoalsHandler(offline *service.OfflineDataService, sync *service.SyncService, monitor *netmon.Monitor, log *logrus.Logger) *GoalsHandler {
	return &GoalsHandler{
		offline: offline,
		sync:    sync,
		monitor: monitor,
		log:     log,
	}
}

func (h *GoalsHandler) RegisterRoutes(router *gin.RouterGroup) {
	goals := router.Group("/goals")
	{
		goals.GET("", h.GetGoals)
		goals.PUT("", h.UpsertGoals)
	}
}

func (h *GoalsHandler) GetGoals(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if h.monitor.IsOnline() {
		if err := h.sync.Refresh(c.Request.Context(), userID); err != nil {
			h.log.WithError(err).Warn("refresh failed, serving mirror only")
		}
	}

	goals, err := h.offline.GetNutritionGoalsWithOfflineChanges(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch nutrition goals"})
		return
	}
	if goals == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Nutrition goals not set"})
		return
	}

	c.JSON(http.StatusOK, goals)
}

// UpsertGoals creates or replaces the user's single goals row.
func (h *GoalsHandler) UpsertGoals(c *gin.Context) {
	var goals models.NutritionGoals
	if err := c.ShouldBindJSON(&goals); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := h.offline.UpsertNutritionGoals(c.Request.Context(), &goals)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, saved)
}
