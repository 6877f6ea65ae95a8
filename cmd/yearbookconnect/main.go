package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/AlumniConnect/YearbookConnect/app/repository"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/cache"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/database"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/env"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/pipeline"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/router"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/storage"
)

func main() {
	app, manager := NewApplication()

	// Graceful shutdown: stop taking requests, then drain the pipeline.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdown
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	manager.Stop()
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *pipeline.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	store, err := storage.Setup()
	if err != nil {
		log.Fatalf("storage setup failed: %v", err)
	}

	manager := pipeline.InitManager(store)
	manager.Start()

	app := fiber.New(fiber.Config{
		AppName:   "YearbookConnect",
		BodyLimit: 512 << 20, // whole scanned yearbooks arrive in one request
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: findDocsPath() + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app, manager
}

// findDocsPath locates the project root relative to the working
// directory, which differs between `go run ./cmd/...` and a container.
func findDocsPath() string {
	for _, path := range []string{"./", "../../", "../../../"} {
		if _, err := os.Stat(path + "public"); !os.IsNotExist(err) {
			return path
		}
	}
	panic("Could not find project root directory")
}
