package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rorbcloud/calibration-backend/internal/handlers"
	"github.com/rorbcloud/calibration-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware     *middleware.AuthMiddleware
	CalibrationHandler *handlers.CalibrationHandler
	StatusHandler      *handlers.StatusHandler
	AccountingHandler  *handlers.AccountingHandler
	AllowOrigins       []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	{
		api.POST("/calibrate", cfg.CalibrationHandler.SubmitSweep)
		api.GET("/calibrate/:task_id/status", cfg.StatusHandler.GetTaskStatus)
		api.GET("/usage", cfg.AccountingHandler.GetUsage)
		api.PUT("/usage/limit", cfg.AccountingHandler.SetLimit)
	}

	return router
}
