package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"clinic-import/internal/config"
	"clinic-import/internal/handler"
	"clinic-import/internal/middleware"
	"clinic-import/internal/repository"
	"clinic-import/internal/service"
)

func SetupAPIRoutes(
	router fiber.Router,
	db *sqlx.DB,
	redis *redis.Client,
	cfg *config.Config,
) {
	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewImportSessionRepository(db)

	// Initialize services
	authService := service.NewAuthService(userRepo, cfg)
	parserService := service.NewParserService()
	reportService := service.NewReportService()
	registry := service.NewPipelineRegistry()

	// Initialize Asynq client (optional - only if Redis is available)
	var asynqClient *asynq.Client
	if redis != nil {
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.AsynqRedisAddr,
			Password: cfg.AsynqRedisPassword,
			DB:       cfg.AsynqRedisDB,
		})
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	importHandler := handler.NewImportHandler(sessionRepo, parserService, reportService, registry, asynqClient, redis, cfg)

	// Public routes
	auth := router.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Post("/register", authHandler.Register)
	auth.Post("/logout", authHandler.Logout)

	// Protected routes
	protected := router.Group("", middleware.AuthMiddleware(cfg))

	// Auth routes
	protected.Get("/auth/me", authHandler.Me)

	// Import wizard routes
	imports := protected.Group("/imports")
	imports.Post("/upload", importHandler.Upload)
	imports.Get("/", importHandler.GetSessions)
	imports.Get("/templates/:dataType", importHandler.Template)
	imports.Get("/:id", importHandler.GetSessionDetail)
	imports.Get("/:id/preview", importHandler.Preview)
	imports.Post("/:id/proceed", importHandler.Proceed)
	imports.Put("/:id/mappings", importHandler.UpdateMappings)
	imports.Post("/:id/redetect", importHandler.Redetect)
	imports.Post("/:id/validate", importHandler.Validate)
	imports.Get("/:id/errors/report", importHandler.ValidationReport)
	imports.Post("/:id/execute", importHandler.Execute)
	imports.Get("/:id/progress", importHandler.Progress)
	imports.Post("/:id/cancel", importHandler.Cancel)
	imports.Post("/:id/back", importHandler.Back)
}
