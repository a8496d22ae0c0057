package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gymfuel/gymfuel-sync/internal/models"
	"github.com/gymfuel/gymfuel-sync/internal/netmon"
	"github.com/gymfuel/gymfuel-sync/internal/service"
)

type ConsumptionHandler struct {
	offline *service.OfflineDataService
	data    *service.UnifiedDataService
	sync    *service.SyncService
	monitor *netmon.Monitor
	log     *logrus.Logger
}

func NewConsumptionHandler(offline *service.OfflineDataService, data *service.UnifiedDataService, sync *service.SyncService, monitor *netmon.Monitor, log *logrus.Logger) *ConsumptionHandler {
	return &ConsumptionHandler{
		offline: offline,
		data:    data,
		sync:    sync,
		monitor: monitor,
		log:     log,
	}
}

func (h *ConsumptionHandler) RegisterRoutes(router *gin.RouterGroup) {
	consumptions := router.Group("/consumptions")
	{
		consumptions.GET("", h.ListConsumptions)
		consumptions.GET("/:id", h.GetConsumption)
		consumptions.POST("", h.CreateConsumption)
		consumptions.POST("/batch", h.BatchCreateConsumptions)
		consumptions.PUT("/:id", h.UpdateConsumption)
		consumptions.DELETE("/:id", h.DeleteConsumption)
	}
}

// ListConsumptions serves the merged view, optionally restricted to a date
// range via from/to query parameters in RFC 3339.
func (h *ConsumptionHandler) ListConsumptions(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC 3339"})
			return
		}
		from = &parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC 3339"})
			return
		}
		to = &parsed
	}

	if h.monitor.IsOnline() {
		if err := h.sync.Refresh(c.Request.Context(), userID); err != nil {
			h.log.WithError(err).Warn("refresh failed, serving mirror only")
		}
	}

	if from != nil || to != nil {
		consumptions, err := h.offline.GetConsumptionsByDateRange(c.Request.Context(), userID, from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch consumptions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"consumptions": consumptions})
		return
	}

	consumptions, err := h.offline.GetConsumptionsWithOfflineChanges(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch consumptions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"consumptions": consumptions})
}

func (h *ConsumptionHandler) GetConsumption(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	consumption, err := h.data.GetConsumption(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch consumption"})
		return
	}
	if consumption == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Consumption not found"})
		return
	}

	c.JSON(http.StatusOK, consumption)
}

func (h *ConsumptionHandler) CreateConsumption(c *gin.Context) {
	var consumption models.Consumption
	if err := c.ShouldBindJSON(&consumption); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.data.CreateConsumption(c.Request.Context(), &consumption)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *ConsumptionHandler) BatchCreateConsumptions(c *gin.Context) {
	var consumptions []*models.Consumption
	if err := c.ShouldBindJSON(&consumptions); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.data.BatchCreateConsumptions(c.Request.Context(), consumptions)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"consumptions": created,
		"requested":    len(consumptions),
		"created":      len(created),
	})
}

func (h *ConsumptionHandler) UpdateConsumption(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.data.UpdateConsumption(c.Request.Context(), id, patch)
	if err != nil {
		writeNotFoundOrServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *ConsumptionHandler) DeleteConsumption(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.data.DeleteConsumption(c.Request.Context(), id); err != nil {
		writeNotFoundOrServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Consumption deleted successfully",
		"id":      strconv.FormatInt(id, 10),
	})
}
