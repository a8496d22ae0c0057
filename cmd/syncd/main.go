package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gymfuel/gymfuel-sync/config"
	"github.com/gymfuel/gymfuel-sync/internal/api"
	"github.com/gymfuel/gymfuel-sync/internal/database"
	"github.com/gymfuel/gymfuel-sync/internal/netmon"
	"github.com/gymfuel/gymfuel-sync/internal/router"
	"github.com/gymfuel/gymfuel-sync/internal/server"
	"github.com/gymfuel/gymfuel-sync/internal/service"
)

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := newLogger(cfg.LogLevel)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to open mirror database: %w", err)
	}

	deviceID, err := database.EnsureDeviceID(db)
	if err != nil {
		return fmt.Errorf("failed to establish device identity: %w", err)
	}
	log.WithField("device_id", deviceID).Info("mirror database ready")

	offline := service.NewOfflineDataService(db, log)
	data := service.NewUnifiedDataService(db, offline, log)
	remote := service.NewHTTPRemoteClient(cfg, deviceID, log)
	monitor := netmon.NewMonitor()

	syncService := service.NewSyncService(db, remote, data, monitor, cfg, log)
	syncService.Start(context.Background())
	defer syncService.Stop()

	engine := router.SetupRouter(
		api.NewProductHandler(offline, data, syncService, monitor, log),
		api.NewConsumptionHandler(offline, data, syncService, monitor, log),
		api.NewGoalsHandler(offline, syncService, monitor, log),
		api.NewSyncHandler(syncService, monitor, log),
		log,
	)

	srv := server.NewServer(engine, log)
	return srv.Start(cfg.ServerHost, cfg.ServerPort)
}

func main() {
	if err := run(); err != nil {
		logrus.Fatal(err)
	}
}
