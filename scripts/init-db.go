package main

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"kudos/internal/config"
	"kudos/internal/database"
	"kudos/internal/migrations"
	"kudos/internal/models"
	"kudos/internal/repository"
	"kudos/internal/services"
)

// Resets the schema and loads a demo dataset for local development.
func main() {
	fmt.Println("Initializing database...")

	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	fmt.Println("Dropping existing tables...")
	err = db.Migrator().DropTable(
		&models.User{},
		&models.Group{},
		&models.TaskType{},
		&models.Task{},
		&models.TaskCompletion{},
		&models.BonusRule{},
		&models.PointsTransaction{},
		&models.Notification{},
	)
	if err != nil {
		log.Printf("Warning: Error dropping tables: %v", err)
	}

	if err := migrations.RunMigrations(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	userService := services.NewUserService(repository.NewUserRepository(db))

	admin := &models.User{Username: "admin", Email: "admin@example.com", Role: string(models.SuperAdmin)}
	if err := userService.CreateUser(admin, "admin123"); err != nil {
		log.Fatal("Failed to create admin user:", err)
	}
	demo := &models.User{Username: "demo", Email: "demo@example.com"}
	if err := userService.CreateUser(demo, "demo123"); err != nil {
		log.Fatal("Failed to create demo user:", err)
	}

	group := models.Group{Name: "Demo Household", Description: "Example group", CreatedBy: admin.ID}
	if err := db.Create(&group).Error; err != nil {
		log.Fatal("Failed to create demo group:", err)
	}

	var choreType models.TaskType
	if err := db.Where("code = ?", "chore").First(&choreType).Error; err != nil {
		log.Fatal("Failed to load seeded task type:", err)
	}

	due := time.Now().UTC().Add(72 * time.Hour)
	task := models.Task{
		Title:      "Take out the recycling",
		GroupID:    &group.ID,
		TaskTypeID: &choreType.ID,
		DueDate:    &due,
		CreatedBy:  admin.ID,
	}
	if err := db.Create(&task).Error; err != nil {
		log.Fatal("Failed to create demo task:", err)
	}

	rules := []models.BonusRule{
		{
			Name:          "on-time-chores",
			Description:   "Chores finished before the deadline",
			GroupID:       &group.ID,
			TaskTypeID:    &choreType.ID,
			Amount:        decimal.NewFromInt(10),
			ConditionType: models.ConditionTaskCompletedOnTime,
			IsActive:      true,
			CreatedBy:     admin.ID,
		},
		{
			Name:            "early-bird",
			Description:     "Finished at least 12 hours early",
			GroupID:         &group.ID,
			Amount:          decimal.NewFromInt(20),
			ConditionType:   models.ConditionTaskCompletedEarly,
			ConditionConfig: models.ConditionConfig{"min_hours_early": 12},
			IsActive:        true,
			CreatedBy:       admin.ID,
		},
		{
			Name:          "first-steps",
			Description:   "First ever approved completion",
			Amount:        decimal.NewFromInt(25),
			ConditionType: models.ConditionUserFirstTaskCompletion,
			IsActive:      true,
			CreatedBy:     admin.ID,
		},
	}
	for i := range rules {
		if err := db.Create(&rules[i]).Error; err != nil {
			log.Fatal("Failed to create demo rule:", err)
		}
	}

	fmt.Println("Database initialized with demo data")
}
