package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/autoreel/configs"
	"github.com/maheshrc27/autoreel/internal/api/handlers"
	"github.com/maheshrc27/autoreel/internal/api/middleware"
	job "github.com/maheshrc27/autoreel/internal/jobs"
	"github.com/maheshrc27/autoreel/internal/queue"
	"github.com/maheshrc27/autoreel/internal/repository"
	"github.com/maheshrc27/autoreel/internal/service"
	"github.com/maheshrc27/autoreel/migrations"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	if err := migrations.Up(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	reelRepo := repository.NewReelRepository(db)
	proxyRepo := repository.NewProxyRepository(db)
	credentialsRepo := repository.NewCredentialsRepository(db)

	proxyService := service.NewProxyService(*cfg, proxyRepo)
	instagramService := service.NewInstagramService(*cfg, proxyService)
	tiktokService := service.NewTiktokService(*cfg, credentialsRepo)
	storageService := service.NewStorageService(*cfg)

	enqueuer := queue.NewEnqueuer(client, cfg.HardTimeLimit)

	discoveryJob := job.NewDiscoveryJob(*cfg, profileRepo, reelRepo, instagramService, enqueuer)
	relayJob := job.NewRelayJob(*cfg, reelRepo, profileRepo, instagramService, tiktokService, storageService)
	tokenRefreshJob := job.NewTokenRefreshJob(*cfg, credentialsRepo, tiktokService)
	maintenanceJob := job.NewMaintenanceJob(*cfg, reelRepo, proxyService, storageService)

	queueW := queue.NewQueue(*cfg, discoveryJob, relayJob, tokenRefreshJob, maintenanceJob)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userRepo)
	api.Get("/user/info", user.GetUserInfo)

	tiktok := handlers.NewTiktokHandler(tiktokService, *cfg)
	api.Get("/tiktok/connect", tiktok.ConnectAccount)
	app.Get("/tiktok/callback", tiktok.CallbackHandler)
	api.Get("/tiktok/account", tiktok.AccountInfo)
	api.Post("/tiktok/disconnect", tiktok.DisconnectAccount)
	api.Get("/tiktok/videos", tiktok.ListVideos)

	profile := handlers.NewProfileHandler(profileRepo, reelRepo, instagramService)
	api.Post("/profiles", profile.CreateProfile)
	api.Get("/profiles", profile.ListProfiles)
	api.Put("/profiles/:id", profile.UpdateProfile)
	api.Delete("/profiles/:id", profile.DeleteProfile)
	api.Get("/profiles/:id/stats", profile.ProfileStats)

	reel := handlers.NewReelHandler(reelRepo, profileRepo)
	api.Get("/reels", reel.ListReels)
	api.Get("/reels/:id", reel.GetReel)
	api.Post("/reels/:id/retry", reel.RetryReel)

	proxy := handlers.NewProxyHandler(proxyService)
	api.Get("/proxies", proxy.ListProxies)
	api.Post("/proxies/:id/reactivate", proxy.ReactivateProxy)
	api.Post("/proxies/refresh", proxy.RefreshProxies)

	dashboard := handlers.NewDashboardHandler(profileRepo, reelRepo, proxyRepo, tiktokService)
	api.Get("/dashboard", dashboard.Overview)

	// periodic triggers
	c := cron.New()
	for _, entry := range queue.ScheduleTable(*cfg) {
		taskType := entry.TaskType
		name := entry.Name
		c.AddFunc(entry.Cadence, func() {
			if err := enqueuer.EnqueueSweep(taskType); err != nil {
				log.Printf("Failed to enqueue %s: %v", name, err)
			}
		})
	}
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		log.Println("Starting the Asynq server...")
		if err := server.Run(queueW.Mux()); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
