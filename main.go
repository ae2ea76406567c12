package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"idle-kingdom-server/handlers"
	"idle-kingdom-server/middleware"
	"idle-kingdom-server/models"
	"idle-kingdom-server/services"
	"idle-kingdom-server/utils"
	"idle-kingdom-server/workers"

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

	app := fiber.New()

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID",
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
		&models.PlayerProfile{},
		&models.Building{},
		&models.Hero{},
		&models.Battle{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Battle-report archiving is optional; the simulation never blocks on it
	archiving := true
	if err := utils.InitR2(); err != nil {
		log.Printf("⚠️  %v — battle reports will not be archived", err)
		archiving = false
	}

	battleService := services.NewBattleService(db)
	profileService := services.NewProfileService(db, battleService)
	progressionService := services.NewProgressionService(db)

	battleService.StartMaintenanceScheduler()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := workers.NewBattleSweeper(db, battleService)
	go workers.PollBattles(ctx, sweeper, 30*time.Second)

	handlers.SetupGameRoutes(app, profileService, progressionService)
	handlers.SetupBattleRoutes(app, battleService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5200"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Battle sweeper running (every 30s)")
	log.Println("✅ Maintenance scheduler running (every 1m)")
	if archiving {
		log.Println("✅ Battle-report archiving to R2 enabled")
	}
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
