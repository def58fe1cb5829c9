package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"giveaway-draw-service/handlers"
	"giveaway-draw-service/middleware"
	"giveaway-draw-service/models"
	"giveaway-draw-service/services"
	"giveaway-draw-service/utils"
	"giveaway-draw-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Giveaway{},
		&models.Participant{},
		&models.Winner{},
		&models.Pickup{},
		&models.AuditLog{},
		&models.DrawUser{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Redis backs the per-giveaway draw locks
	if err := utils.InitRedis(); err != nil {
		log.Fatal("failed to initialize Redis client:", err)
	}
	defer utils.CloseRedis()

	serviceToken := os.Getenv("DRAW_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("DRAW_SERVICE_TOKEN environment variable not set")
	}

	// --- Collaborator services ---
	pushServiceURL := os.Getenv("PUSH_SERVICE_URL")
	if pushServiceURL == "" {
		log.Fatal("PUSH_SERVICE_URL environment variable not set")
	}
	profileServiceURL := os.Getenv("PROFILE_SERVICE_URL")
	if profileServiceURL == "" {
		log.Fatal("PROFILE_SERVICE_URL environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := workers.NewNotificationDispatcher(pushServiceURL, "/api/v1/internal/notifications", serviceToken, utils.HTTPClient)
	dispatcher.Start(ctx)

	syncWorker := workers.NewDrawUserSyncWorker(db, profileServiceURL, "/api/v1/public/profiles", serviceToken)
	syncWorker.Start(ctx)

	lockService := services.NewDrawLockService(utils.RedisClient())
	drawService := services.NewDrawService(db, lockService, dispatcher)
	giveawayService := services.NewGiveawayService(db, dispatcher)

	giveawayService.StartCompletionScheduler()

	// ✅ Setup routes — enforced Gateway auth globally
	handlers.SetupDrawRoutes(app, drawService)
	handlers.SetupGiveawayRoutes(app, giveawayService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Notification Dispatcher running")
	log.Println("✅ Draw User Sync Worker running")
	log.Println("✅ Completion scheduler running (every 5m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
