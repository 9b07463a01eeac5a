package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ConditionType tags which evaluation strategy applies to a rule.
// New types can be registered at runtime, so this is an open set.
type ConditionType string

const (
	ConditionDefault                     ConditionType = "DEFAULT"
	ConditionTaskCompletedOnTime         ConditionType = "TASK_COMPLETED_ON_TIME"
	ConditionTaskCompletedEarly          ConditionType = "TASK_COMPLETED_EARLY"
	ConditionUserFirstTaskCompletion     ConditionType = "USER_FIRST_TASK_COMPLETION"
	ConditionUserFirstSpecificCompletion ConditionType = "USER_FIRST_SPECIFIC_TASK_COMPLETION"
)

// ConditionConfig is an open key-value parameter map stored as a JSON
// column (e.g. {"min_hours_early": 12}).
type ConditionConfig map[string]interface{}

func (c ConditionConfig) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

func (c *ConditionConfig) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("condition config: unsupported column type")
	}
	return json.Unmarshal(data, c)
}

// FloatValue reads a numeric parameter, tolerating both JSON numbers and
// numeric strings.
func (c ConditionConfig) FloatValue(key string, defaultValue float64) float64 {
	raw, ok := c[key]
	if !ok {
		return defaultValue
	}
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			f, _ := d.Float64()
			return f
		}
	}
	return defaultValue
}

// BonusRule is a configured policy for awarding or deducting points.
//
// The scope columns define specificity: TaskID pins the rule to a single
// task, TaskTypeID to a category, GroupID to all tasks of a group; with
// all three nil the rule is global. Amount is signed (positive = reward,
// negative = penalty). The calculation engine treats rules as read-only.
type BonusRule struct {
	ID              uint             `json:"id" gorm:"primaryKey"`
	Name            string           `json:"name" gorm:"not null;index"`
	Description     string           `json:"description"`
	GroupID         *uint            `json:"group_id" gorm:"index"`
	TaskTypeID      *uint            `json:"task_type_id" gorm:"index"`
	TaskID          *uint            `json:"task_id" gorm:"index"`
	Amount          decimal.Decimal  `json:"amount" gorm:"type:decimal(12,2);not null"`
	ConditionType   ConditionType    `json:"condition_type" gorm:"type:varchar(64);not null;default:'DEFAULT'"`
	ConditionConfig ConditionConfig  `json:"condition_config" gorm:"type:json"`
	ValidFrom       *time.Time       `json:"valid_from"`
	ValidUntil      *time.Time       `json:"valid_until"`
	IsActive        bool             `json:"is_active" gorm:"default:true;index"`
	CreatedBy       uint             `json:"created_by" gorm:"not null"`
	UpdatedBy       uint             `json:"updated_by"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	DeletedAt       gorm.DeletedAt   `json:"deleted_at" gorm:"index"`
}

// Specificity ranks the rule's scope from 3 (single task) down to 0
// (global). Used only to order candidates, never to pick the winner.
func (r *BonusRule) Specificity() int {
	switch {
	case r.TaskID != nil:
		return 3
	case r.TaskTypeID != nil:
		return 2
	case r.GroupID != nil:
		return 1
	default:
		return 0
	}
}
