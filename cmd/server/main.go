package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pengaduan/backend/internal/config"
	"github.com/pengaduan/backend/internal/database"
	"github.com/pengaduan/backend/internal/handlers"
	"github.com/pengaduan/backend/internal/middleware"
	"github.com/pengaduan/backend/internal/repository"
	"github.com/pengaduan/backend/internal/services"
	"github.com/pengaduan/backend/internal/storage"
	"github.com/pengaduan/backend/internal/workflow"
	"github.com/pengaduan/backend/pkg/utils"
)

func main() {
	cfg := config.Load()

	db, err := database.Connect(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if err := database.Seed(db); err != nil {
		log.Printf("Warning: Failed to seed database: %v", err)
	}

	redisClient, err := database.ConnectRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer database.CloseRedis(redisClient)

	minioStorage, err := storage.NewMinIOStorage(&cfg.MinIO)
	if err != nil {
		log.Fatalf("Failed to connect to MinIO: %v", err)
	}

	jwtManager := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.ExpireHour)
	sessionStore := database.NewSessionStore(redisClient)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	complaintRepo := repository.NewComplaintRepository(db)

	// Services
	assignment := services.NewAssignmentResolver(userRepo)
	complaintService := services.NewComplaintService(services.NewTxRunner(db), complaintRepo, userRepo, assignment, minioStorage)
	userService := services.NewUserService(userRepo, jwtManager, sessionStore)
	statsService := services.NewStatsService(complaintRepo)

	// Handlers
	complaintHandler := handlers.NewComplaintHandler(complaintService, assignment, minioStorage)
	userHandler := handlers.NewUserHandler(userService)
	statsHandler := handlers.NewStatsHandler(statsService)
	healthHandler := handlers.NewHealthHandler(db)

	authRequired := middleware.AuthRequired(jwtManager, sessionStore, userRepo)

	app := fiber.New(fiber.Config{
		AppName:      "Pengaduan Backend",
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: cfg.Server.CORSOrigins != "*",
	}))

	api := app.Group("/api")
	v1 := api.Group("/v1")

	v1.Get("/health", healthHandler.Check)

	// Auth routes
	auth := v1.Group("/auth")
	auth.Post("/login", userHandler.Login)
	auth.Post("/refresh", userHandler.Refresh)
	auth.Post("/logout", authRequired, userHandler.Logout)

	v1.Get("/users/me", authRequired, userHandler.Me)

	// Public intake and tracking
	complaints := v1.Group("/complaints")
	complaints.Post("/", complaintHandler.Create)
	complaints.Get("/track/:tracking_id", complaintHandler.Track)

	// Internal complaint workflow
	complaints.Get("/", authRequired, complaintHandler.List)
	complaints.Get("/:id", authRequired, complaintHandler.Get)
	complaints.Get("/:id/history", authRequired, complaintHandler.History)
	complaints.Get("/:id/attachments/:attachment_id", authRequired, complaintHandler.DownloadAttachment)
	complaints.Post("/:id/verify", authRequired, complaintHandler.Verify)
	complaints.Post("/:id/assign", authRequired, complaintHandler.Assign)
	complaints.Post("/:id/notes", authRequired, complaintHandler.AddNote)
	complaints.Post("/:id/request-closure", authRequired, complaintHandler.RequestClosure)
	complaints.Post("/:id/review", authRequired, complaintHandler.Review)
	complaints.Post("/:id/reject", authRequired, complaintHandler.Reject)
	complaints.Put("/:id", authRequired, middleware.RequireRole(workflow.RoleAdmin), complaintHandler.Update)
	complaints.Delete("/:id", authRequired, middleware.RequireRole(workflow.RoleAdmin), complaintHandler.Delete)

	// Assignment support
	v1.Get("/agents", authRequired, middleware.RequireRole(workflow.RoleAdmin, workflow.RoleSupervisor), complaintHandler.EligibleAgents)

	// Dashboard stats
	v1.Get("/stats", authRequired, statsHandler.Get)

	// User management (admin)
	admin := v1.Group("/admin", authRequired, middleware.RequireRole(workflow.RoleAdmin))
	admin.Get("/users", userHandler.List)
	admin.Post("/users", userHandler.Create)
	admin.Get("/users/:id", userHandler.Get)
	admin.Put("/users/:id", userHandler.Update)

	go func() {
		addr := ":" + cfg.Server.Port
		log.Printf("Server starting on %s", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
