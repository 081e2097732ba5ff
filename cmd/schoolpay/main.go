package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/spf13/cast"

	"github.com/ManuelReschke/SchoolPay/app/repository"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/cache"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/config"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/database"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/env"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/events"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/gateway"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/jobqueue"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/orderid"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/payment"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/poller"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/reconcile"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/router"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/statistics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	env.SetupEnvFile()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[Config] %v", err)
	}

	app, cleanup := NewApplication(cfg)

	go func() {
		if err := app.Listen(fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port)); err != nil {
			log.Errorf("[Server] listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("[Server] shutting down...")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Errorf("[Server] shutdown failed: %v", err)
	}
	cleanup()
	log.Info("[Server] stopped")
}

// NewApplication wires every service and returns the app plus a cleanup
// function that stops background work.
func NewApplication(cfg *config.Config) (*fiber.App, func()) {
	database.SetupDatabase(cfg.Database, cfg.IsDev())
	cache.SetupCache(cfg.Cache)
	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	ids, err := orderid.NewGenerator(cfg.OrderID.MachineID)
	if err != nil {
		log.Fatalf("[OrderID] %v", err)
	}
	publisher := events.NewPublisher(cfg.Kafka)
	engine := reconcile.NewEngineFromDB(database.GetDB(), publisher)
	service := payment.NewService(gateway.NewClient(cfg.Gateway), engine, repos.Order, ids, payment.Options{
		DefaultSchoolID:    cfg.Gateway.DefaultSchoolID,
		DefaultCallbackURL: cfg.Gateway.CallbackURL,
		GatewayName:        cfg.Gateway.Name,
	})

	manager := jobqueue.GetManager()
	manager.Configure(repos.Order, poller.NewFromService(service))
	manager.Start()

	basePath := findBasePath()

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	if cfg.Metrics.Username != "" && cfg.Metrics.Password != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{
				cfg.Metrics.Username: cfg.Metrics.Password,
			},
		}), monitor.New())
	}

	// SWAGGER / OPENAPI
	if basePath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: basePath + "public/docs/v1/openapi.yml",
			Path:     "v1",
		}))
	} else {
		log.Warn("[Server] openapi.yml not found, /docs/api/v1 disabled")
	}

	limiterStorage := redisstorage.New(redisstorage.Config{
		Host:     cfg.Cache.Host,
		Port:     cast.ToInt(cfg.Cache.Port),
		Password: cfg.Cache.Password,
		Database: 1,
	})

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		DB:             database.GetDB(),
		Repos:          repos,
		Payments:       service,
		Queue:          manager,
		Stats:          statistics.NewService(database.GetDB()),
		JWTSecret:      cfg.Auth.JWTSecret,
		LimiterStorage: limiterStorage,
		RateLimit:      cfg.App.RateLimit,
	})

	cleanup := func() {
		manager.Stop()
		if err := limiterStorage.Close(); err != nil {
			log.Warnf("[Server] limiter storage close failed: %v", err)
		}
		if err := publisher.Close(); err != nil {
			log.Warnf("[Events] close failed: %v", err)
		}
	}
	return app, cleanup
}

// findBasePath locates the project root holding the public assets
func findBasePath() string {
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/schoolpay to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); err == nil {
			return path
		}
	}
	return ""
}
