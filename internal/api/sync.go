package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gymfuel/gymfuel-sync/internal/netmon"
	"github.com/gymfuel/gymfuel-sync/internal/service"
)

type SyncHandler struct {
	sync    *service.SyncService
	monitor *netmon.Monitor
	log     *logrus.Logger
}

func NewSyncHandler(sync *service.SyncService, monitor *netmon.Monitor, log *logrus.Logger) *SyncHandler {
	return &SyncHandler{
		sync:    sync,
		monitor: monitor,
		log:     log,
	}
}

func (h *SyncHandler) RegisterRoutes(router *gin.RouterGroup) {
	sync := router.Group("/sync")
	{
		sync.GET("/status", h.GetStatus)
		sync.POST("/drain", h.Drain)
	}
	router.POST("/network", h.SetNetworkStatus)
}

func (h *SyncHandler) GetStatus(c *gin.Context) {
	status, err := h.sync.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read sync status"})
		return
	}

	c.JSON(http.StatusOK, status)
}

// Drain triggers a queue drain pass outside the automatic reconnect flow, the
// manual "sync now" button.
func (h *SyncHandler) Drain(c *gin.Context) {
	result, err := h.sync.Drain(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrDrainInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// SetNetworkStatus is how the host platform reports connectivity transitions.
type networkStatusRequest struct {
	Online *bool `json:"online" binding:"required"`
}

func (h *SyncHandler) SetNetworkStatus(c *gin.Context) {
	var req networkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "online is required"})
		return
	}

	h.monitor.SetOnline(*req.Online)
	h.log.WithFields(logrus.Fields{"online": *req.Online}).Info("network status reported")

	c.JSON(http.StatusOK, gin.H{"online": h.monitor.IsOnline()})
}
