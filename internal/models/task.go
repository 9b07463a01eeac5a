package models

import (
	"time"

	"gorm.io/gorm"
)

type Group struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name" gorm:"unique;not null"`
	Description string         `json:"description"`
	IsActive    bool           `json:"is_active" gorm:"default:true"`
	CreatedBy   uint           `json:"created_by" gorm:"not null"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"deleted_at" gorm:"index"`
}

// TaskType is a dictionary entry describing a category of tasks.
// RequiresApproval decides whether a submitted completion waits for a
// reviewer or becomes terminal immediately.
type TaskType struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	Code             string    `json:"code" gorm:"unique;not null"`
	Name             string    `json:"name" gorm:"not null"`
	Description      string    `json:"description"`
	RequiresApproval bool      `json:"requires_approval" gorm:"default:true"`
	IsActive         bool      `json:"is_active" gorm:"default:true"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Task struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Title        string         `json:"title" gorm:"not null"`
	Description  string         `json:"description"`
	GroupID      *uint          `json:"group_id" gorm:"index"` // nil = ungrouped task
	TaskTypeID   *uint          `json:"task_type_id" gorm:"index"`
	DueDate      *time.Time     `json:"due_date"`
	IsRepeatable bool           `json:"is_repeatable" gorm:"default:false"`
	IsActive     bool           `json:"is_active" gorm:"default:true"`
	CreatedBy    uint           `json:"created_by" gorm:"not null"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	TaskType *TaskType `json:"task_type,omitempty" gorm:"foreignKey:TaskTypeID"`
}
