package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/quicktoolshq/quicktools/app/repository"
	"github.com/quicktoolshq/quicktools/internal/pkg/archive"
	"github.com/quicktoolshq/quicktools/internal/pkg/billing"
	"github.com/quicktoolshq/quicktools/internal/pkg/cache"
	"github.com/quicktoolshq/quicktools/internal/pkg/cleanup"
	"github.com/quicktoolshq/quicktools/internal/pkg/constants"
	"github.com/quicktoolshq/quicktools/internal/pkg/database"
	"github.com/quicktoolshq/quicktools/internal/pkg/env"
	"github.com/quicktoolshq/quicktools/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	billing.SetupStripe()
	archive.Setup()

	// Drop files older than the artifact retention window
	cleanup.SweepOnStartup(constants.OutputDir)

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 64 * 1024 * 1024,
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
