package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gymfuel/gymfuel-sync/internal/api"
	"github.com/gymfuel/gymfuel-sync/internal/middleware"
)

// SetupRouter configures the application routes
func SetupRouter(
	productHandler *api.ProductHandler,
	consumptionHandler *api.ConsumptionHandler,
	goalsHandler *api.GoalsHandler,
	syncHandler *api.SyncHandler,
	log *logrus.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))

	// The UI runs on the Vite dev server during development.
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Accept", "Origin", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")

	productHandler.RegisterRoutes(v1)
	consumptionHandler.RegisterRoutes(v1)
	goalsHandler.RegisterRoutes(v1)
	syncHandler.RegisterRoutes(v1)

	return router
}
