package repository

import (
	"time"

	"kudos/internal/models"

	"gorm.io/gorm"
)

// RuleFilter narrows ListRules. Zero values mean "no filter".
type RuleFilter struct {
	GroupID       *uint
	TaskTypeID    *uint
	TaskID        *uint
	IsActive      *bool
	ValidOn       *time.Time
	IncludeGlobal bool // with GroupID set, also return group-less rules
	Offset        int
	Limit         int
}

type BonusRuleRepository interface {
	Create(rule *models.BonusRule) error
	GetByID(id uint) (*models.BonusRule, error)
	Update(rule *models.BonusRule) error
	Delete(id uint) error
	List(filter RuleFilter) ([]models.BonusRule, error)
	ExistsByNameInScope(name string, groupID *uint, excludeID uint) (bool, error)
	FindApplicable(groupID, taskID, taskTypeID *uint, now time.Time) ([]models.BonusRule, error)
}

type bonusRuleRepository struct {
	db *gorm.DB
}

func NewBonusRuleRepository(db *gorm.DB) BonusRuleRepository {
	return &bonusRuleRepository{db: db}
}

func (r *bonusRuleRepository) Create(rule *models.BonusRule) error {
	return r.db.Create(rule).Error
}

func (r *bonusRuleRepository) GetByID(id uint) (*models.BonusRule, error) {
	var rule models.BonusRule
	err := r.db.First(&rule, id).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *bonusRuleRepository) Update(rule *models.BonusRule) error {
	return r.db.Save(rule).Error
}

func (r *bonusRuleRepository) Delete(id uint) error {
	return r.db.Delete(&models.BonusRule{}, id).Error
}

func (r *bonusRuleRepository) List(filter RuleFilter) ([]models.BonusRule, error) {
	query := r.db.Model(&models.BonusRule{})

	if filter.GroupID != nil {
		if filter.IncludeGlobal {
			query = query.Where("group_id = ? OR group_id IS NULL", *filter.GroupID)
		} else {
			query = query.Where("group_id = ?", *filter.GroupID)
		}
	}
	if filter.TaskTypeID != nil {
		query = query.Where("task_type_id = ?", *filter.TaskTypeID)
	}
	if filter.TaskID != nil {
		query = query.Where("task_id = ?", *filter.TaskID)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.ValidOn != nil {
		query = query.
			Where("valid_from IS NULL OR valid_from <= ?", *filter.ValidOn).
			Where("valid_until IS NULL OR valid_until >= ?", *filter.ValidOn)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rules []models.BonusRule
	err := query.Order("group_id ASC NULLS FIRST").Order("name ASC").Find(&rules).Error
	return rules, err
}

// ExistsByNameInScope checks rule-name uniqueness within one group, or
// within the global scope when groupID is nil.
func (r *bonusRuleRepository) ExistsByNameInScope(name string, groupID *uint, excludeID uint) (bool, error) {
	query := r.db.Model(&models.BonusRule{}).Where("name = ?", name)
	if groupID != nil {
		query = query.Where("group_id = ?", *groupID)
	} else {
		query = query.Where("group_id IS NULL")
	}
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	err := query.Count(&count).Error
	return count > 0, err
}

// FindApplicable returns every rule structurally eligible for the given
// context: active, inside its validity window as of now, and matched by
// one of the four scope clauses (task-pinned, task-type within group or
// global, group-wide, fully global). Ordering by specificity is left to
// the service layer; name ordering here keeps results stable.
func (r *bonusRuleRepository) FindApplicable(groupID, taskID, taskTypeID *uint, now time.Time) ([]models.BonusRule, error) {
	scope := r.db.Where("group_id IS NULL AND task_id IS NULL AND task_type_id IS NULL")

	if taskID != nil {
		scope = scope.Or("task_id = ?", *taskID)
	}
	if taskTypeID != nil {
		if groupID != nil {
			scope = scope.Or(
				"task_type_id = ? AND task_id IS NULL AND (group_id = ? OR group_id IS NULL)",
				*taskTypeID, *groupID,
			)
		} else {
			scope = scope.Or("task_type_id = ? AND task_id IS NULL AND group_id IS NULL", *taskTypeID)
		}
	}
	if groupID != nil {
		scope = scope.Or("group_id = ? AND task_id IS NULL AND task_type_id IS NULL", *groupID)
	}

	var rules []models.BonusRule
	err := r.db.
		Where("is_active = ?", true).
		Where("valid_from IS NULL OR valid_from <= ?", now).
		Where("valid_until IS NULL OR valid_until >= ?", now).
		Where(scope).
		Order("name ASC").
		Find(&rules).Error
	return rules, err
}
