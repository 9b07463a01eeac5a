package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"kudos/internal/config"
	"kudos/internal/database"
	"kudos/internal/handlers"
	"kudos/internal/migrations"
	"kudos/internal/redis"
	"kudos/internal/repository"
	"kudos/internal/services"
	"kudos/pkg/notify"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := migrations.RunMigrations(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis
	redisClient, err := redis.Initialize(cfg.RedisURL, time.Duration(cfg.BalanceTTL)*time.Second)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	// Outbound notification webhook (optional)
	var notifyClient *notify.Client
	if cfg.NotifyURL != "" {
		notifyClient = notify.NewClient(cfg.NotifyURL, cfg.NotifyUsername, cfg.NotifyPassword)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	taskTypeRepo := repository.NewTaskTypeRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	completionRepo := repository.NewCompletionRepository(db)
	ruleRepo := repository.NewBonusRuleRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	atomic := repository.NewAtomic(db)

	// Initialize services
	userService := services.NewUserService(userRepo)
	taskService := services.NewTaskService(taskRepo, taskTypeRepo, groupRepo)
	ruleService := services.NewBonusRuleService(ruleRepo, taskRepo, taskTypeRepo)
	calculationService := services.NewBonusCalculationService(ruleService, completionRepo)
	notificationService := services.NewNotificationService(notificationRepo, notifyClient)
	ledgerService := services.NewLedgerService(ledgerRepo, userRepo, redisClient)
	completionService := services.NewTaskCompletionService(
		taskRepo, userRepo, completionRepo, atomic,
		calculationService, notificationService, redisClient,
	)

	// Initialize handlers
	apiHandler := handlers.NewAPIHandler(
		userService, taskService, completionService,
		ruleService, ledgerService, notificationService,
	)

	// Setup routes
	router := gin.Default()

	router.GET("/health", apiHandler.Health)

	api := router.Group("/api")
	{
		api.POST("/users", apiHandler.CreateUser)
		api.GET("/users", apiHandler.ListUsers)
		api.GET("/users/:user_id", apiHandler.GetUser)

		api.POST("/groups", apiHandler.CreateGroup)
		api.GET("/groups", apiHandler.ListGroups)

		api.POST("/tasks", apiHandler.CreateTask)
		api.GET("/tasks/:task_id", apiHandler.GetTask)
		api.GET("/task-types", apiHandler.ListTaskTypes)

		api.POST("/tasks/:task_id/completions", apiHandler.SubmitCompletion)
		api.GET("/tasks/:task_id/completions", apiHandler.ListTaskCompletions)
		api.PUT("/completions/:completion_id/review", apiHandler.ReviewCompletion)
		api.GET("/completions/:completion_id", apiHandler.GetCompletion)

		api.POST("/bonus-rules", apiHandler.CreateRule)
		api.GET("/bonus-rules", apiHandler.ListRules)
		api.GET("/bonus-rules/:rule_id", apiHandler.GetRule)
		api.PUT("/bonus-rules/:rule_id", apiHandler.UpdateRule)
		api.DELETE("/bonus-rules/:rule_id", apiHandler.DeleteRule)

		api.GET("/users/:user_id/balance", apiHandler.GetBalance)
		api.GET("/users/:user_id/transactions", apiHandler.ListTransactions)
		api.POST("/users/:user_id/adjustments", apiHandler.AdjustBalance)
		api.GET("/users/:user_id/notifications", apiHandler.ListNotifications)
	}

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := router.Run(":" + cfg.ServerPort); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
