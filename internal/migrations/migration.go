package migrations

import (
	"log"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kudos/internal/models"
)

// RunMigrations migrates the schema and seeds the dictionary data the
// engine depends on.
func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
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
		return err
	}

	// One live (non-rejected) completion per (task, user) for
	// non-repeatable tasks. Serializes concurrent double-submissions
	// below the application-level existence check; repeatable tasks are
	// exempt and accumulate one row per attempt.
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_completions_task_user_live
		ON task_completions (task_id, user_id)
		WHERE status <> 'REJECTED' AND NOT task_repeatable`).Error
	if err != nil {
		return err
	}

	if err := seedDefaultData(db); err != nil {
		log.Printf("Warning: Failed to seed default data: %v", err)
	}

	log.Println("Database migrations completed")
	return nil
}

func seedDefaultData(db *gorm.DB) error {
	taskTypes := []models.TaskType{
		{Code: "chore", Name: "Chore", Description: "Recurring household or team chore", RequiresApproval: true},
		{Code: "errand", Name: "Errand", Description: "One-off errand, trusted without review", RequiresApproval: false},
		{Code: "event", Name: "Event", Description: "Attendance-based event task", RequiresApproval: true},
	}
	for i := range taskTypes {
		var count int64
		if err := db.Model(&models.TaskType{}).Where("code = ?", taskTypes[i].Code).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			if err := db.Create(&taskTypes[i]).Error; err != nil {
				return err
			}
		}
	}

	// Global fallback rule: every approved completion is worth something.
	var ruleCount int64
	if err := db.Model(&models.BonusRule{}).Where("name = ? AND group_id IS NULL", "default-completion-bonus").Count(&ruleCount).Error; err != nil {
		return err
	}
	if ruleCount == 0 {
		rule := models.BonusRule{
			Name:          "default-completion-bonus",
			Description:   "Baseline award for any approved task completion",
			Amount:        decimal.NewFromInt(5),
			ConditionType: models.ConditionDefault,
			IsActive:      true,
			CreatedBy:     1,
		}
		if err := db.Create(&rule).Error; err != nil {
			return err
		}
	}
	return nil
}
