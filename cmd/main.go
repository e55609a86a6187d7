package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rorbcloud/calibration-backend/internal/cache"
	"github.com/rorbcloud/calibration-backend/internal/db"
	"github.com/rorbcloud/calibration-backend/internal/handlers"
	"github.com/rorbcloud/calibration-backend/internal/hydrology"
	"github.com/rorbcloud/calibration-backend/internal/jobs"
	"github.com/rorbcloud/calibration-backend/internal/logger"
	"github.com/rorbcloud/calibration-backend/internal/middleware"
	"github.com/rorbcloud/calibration-backend/internal/repos"
	"github.com/rorbcloud/calibration-backend/internal/server"
	"github.com/rorbcloud/calibration-backend/internal/services"
	"github.com/rorbcloud/calibration-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	port := utils.GetEnv("PORT", "8080", log)
	adminOwnerID := utils.GetEnv("ADMIN_OWNER_ID", "", log)
	allowOrigins := strings.Split(utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log), ",")
	simulationTTL := utils.GetEnvAsDuration("SIMULATION_TTL_SECONDS", 3600, log)
	chunkSize := utils.GetEnvAsInt("RUNNER_CHUNK_SIZE", 20, log)
	parallelism := utils.GetEnvAsInt("RUNNER_PARALLELISM", 1, log)
	workerPoll := utils.GetEnvAsDuration("WORKER_POLL_SECONDS", 1, log)
	reaperInterval := utils.GetEnvAsDuration("REAPER_INTERVAL_SECONDS", 60, log)
	staleGrace := utils.GetEnvAsDuration("REAPER_STALE_GRACE_SECONDS", 600, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	taskStore := repos.NewTaskStore(thePG, log)
	queueFactory := repos.NewSimulationQueueFactory(thePG, log, simulationTTL)
	accountingGate := repos.NewAccountingGate(thePG, log)

	// Cache
	resultCache := cache.NewTaskResultCache(log)

	// Services
	log.Info("Setting up Services from main...")
	authService, err := services.NewAuthService(log)
	if err != nil {
		log.Error("Could not init AuthService", "error", err)
		os.Exit(1)
	}
	engine, err := hydrology.NewHTTPEngine(log)
	if err != nil {
		log.Error("Could not init simulation engine client", "error", err)
		os.Exit(1)
	}
	calibrationService := services.NewCalibrationService(thePG, log, taskStore, queueFactory, accountingGate)
	runnerService := services.NewRunnerService(log, taskStore, queueFactory, accountingGate, engine, parallelism)
	progressService := services.NewProgressService(log, taskStore, queueFactory, resultCache)
	usageService := services.NewUsageService(log, accountingGate, adminOwnerID)

	// Background loops
	ctx := context.Background()
	worker := jobs.NewWorker(log, queueFactory, runnerService, workerPoll, chunkSize)
	worker.Start(ctx)
	reaper := jobs.NewReaper(log, queueFactory, reaperInterval, staleGrace)
	reaper.Start(ctx)

	// Router
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:     middleware.NewAuthMiddleware(log, authService),
		CalibrationHandler: handlers.NewCalibrationHandler(calibrationService),
		StatusHandler:      handlers.NewStatusHandler(progressService),
		AccountingHandler:  handlers.NewAccountingHandler(usageService),
		AllowOrigins:       allowOrigins,
	})

	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
