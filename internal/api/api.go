// Package api exposes the local sync daemon over HTTP so the UI talks to one
// endpoint regardless of connectivity.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gymfuel/gymfuel-sync/internal/service"
)

// requireUserID reads the mandatory userId query parameter.
func requireUserID(c *gin.Context) (int64, bool) {
	raw := c.Query("userId")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return 0, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId must be a positive integer"})
		return 0, false
	}
	return userID, true
}

// pathID reads the :id path parameter. Negative values are valid: records
// created offline carry temporary negative ids until their create is synced.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func writeServiceError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrUserIDRequired) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func writeNotFoundOrServiceError(c *gin.Context, err error) {
	if strings.Contains(err.Error(), "not found") {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	writeServiceError(c, err)
}
