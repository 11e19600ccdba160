package main

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/redis/go-redis/v9"

	"github.com/fuelgrid/gridauth/internal/api/handlers"
	"github.com/fuelgrid/gridauth/internal/api/router"
	"github.com/fuelgrid/gridauth/internal/auth"
	"github.com/fuelgrid/gridauth/internal/config"
	"github.com/fuelgrid/gridauth/internal/middleware"
	"github.com/fuelgrid/gridauth/internal/session"
	"github.com/fuelgrid/gridauth/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize storage
	dsn := storage.BuildDSN(cfg.Database)
	store, err := storage.NewPostgresStorage(dsn)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName: "gridauth",
	})

	// Middleware
	app.Use(cors.New())
	app.Use(logger.New())

	// Core services
	sessions := session.NewManager(store, cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	svc := auth.NewService(store, sessions, cfg.Auth.BcryptCost)

	// Login attempts are counted in Redis when configured, in memory
	// otherwise.
	var attempts middleware.AttemptStore = middleware.NewMemoryStore()
	if cfg.Redis.Host != "" {
		attempts = middleware.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	}

	// Handlers and middleware
	authHandler := handlers.NewAuthHandler(svc, store)
	sessionHandler := handlers.NewSessionHandler(svc, store)
	authMiddleware := middleware.NewAuthMiddleware(svc)
	loginLimiter := middleware.NewLoginLimiter(
		attempts,
		cfg.Server.RateLimit.Enabled,
		cfg.Server.RateLimit.Limit,
		cfg.Server.RateLimit.Window,
	)

	// Initialize router
	apiRouter := router.NewRouter(
		app,
		authHandler,
		sessionHandler,
		authMiddleware,
		loginLimiter,
	)

	// Setup routes
	apiRouter.SetupRoutes()

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	log.Printf("Server starting on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
