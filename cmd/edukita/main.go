package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/EdukitaHQ/edukita/app/repository"
	"github.com/EdukitaHQ/edukita/internal/pkg/cache"
	"github.com/EdukitaHQ/edukita/internal/pkg/database"
	"github.com/EdukitaHQ/edukita/internal/pkg/env"
	"github.com/EdukitaHQ/edukita/internal/pkg/jobqueue"
	"github.com/EdukitaHQ/edukita/internal/pkg/payment"
	"github.com/EdukitaHQ/edukita/internal/pkg/router"
	"github.com/EdukitaHQ/edukita/internal/pkg/subscription"
)

func main() {
	app := NewApplication()

	// start background workers for payment and plan reconciliation
	manager := jobqueue.GetManager()
	manager.Start(payment.NewMidtransGatewayFromEnv(), subscription.NewRedisPlanCache())

	// graceful shutdown on SIGINT/SIGTERM
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		manager.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	app := fiber.New(fiber.Config{
		AppName: "Edukita",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
