package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gymfuel/gymfuel-sync/internal/models"
	"github.com/gymfuel/gymfuel-sync/internal/netmon"
	"github.com/gymfuel/gymfuel-sync/internal/service"
)

type ProductHandler struct {
	offline *service.OfflineDataService
	data    *service.UnifiedDataService
	sync    *service.SyncService
	monitor *netmon.Monitor
	log     *logrus.Logger
}

func NewProductHandler(offline *service.OfflineDataService, data *service.UnifiedDataService, sync *service.SyncService, monitor *netmon.Monitor, log *logrus.Logger) *ProductHandler {
	return &ProductHandler{
		offline: offline,
		data:    data,
		sync:    sync,
		monitor: monitor,
		log:     log,
	}
}

func (h *ProductHandler) RegisterRoutes(router *gin.RouterGroup) {
	products := router.Group("/products")
	{
		products.GET("", h.ListProducts)
		products.GET("/:id", h.GetProduct)
		products.POST("", h.CreateProduct)
		products.POST("/batch", h.BatchCreateProducts)
		products.PUT("/:id", h.UpdateProduct)
		products.DELETE("/:id", h.DeleteProduct)
	}
}

// ListProducts serves the merged view: cached server rows with queued local
// changes applied on top. When online it refreshes the mirror first, degrading
// to mirror-only if the refresh fails.
func (h *ProductHandler) ListProducts(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if h.monitor.IsOnline() {
		if err := h.sync.Refresh(c.Request.Context(), userID); err != nil {
			h.log.WithError(err).Warn("refresh failed, serving mirror only")
		}
	}

	products, err := h.offline.GetProductsWithOfflineChanges(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	product, err := h.data.GetProduct(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.data.CreateProduct(c.Request.Context(), &product)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *ProductHandler) BatchCreateProducts(c *gin.Context) {
	var products []*models.Product
	if err := c.ShouldBindJSON(&products); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.data.BatchCreateProducts(c.Request.Context(), products)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"products":  created,
		"requested": len(products),
		"created":   len(created),
	})
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.data.UpdateProduct(c.Request.Context(), id, patch)
	if err != nil {
		writeNotFoundOrServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.data.DeleteProduct(c.Request.Context(), id); err != nil {
		writeNotFoundOrServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product deleted successfully",
		"id":      strconv.FormatInt(id, 10),
	})
}
