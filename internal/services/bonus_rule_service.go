package services

import (
	"errors"
	"log"
	"sort"
	"time"

	"gorm.io/gorm"

	"kudos/internal/apperrors"
	"kudos/internal/models"
	"kudos/internal/repository"
)

// BonusRuleService manages bonus rule configuration and resolves which
// rules could apply to a completion context.
type BonusRuleService interface {
	CreateRule(rule *models.BonusRule, createdBy uint) error
	GetRuleByID(id uint) (*models.BonusRule, error)
	UpdateRule(rule *models.BonusRule, updatedBy uint) error
	DeleteRule(id uint) error
	ListRules(filter repository.RuleFilter) ([]models.BonusRule, error)
	// GetApplicableRules returns every structurally eligible rule for the
	// context, ordered from most to least specific. groupID may be nil
	// for ungrouped tasks; global rules are still returned then.
	GetApplicableRules(groupID, taskID, taskTypeID *uint) ([]models.BonusRule, error)
}

type bonusRuleService struct {
	ruleRepo     repository.BonusRuleRepository
	taskRepo     repository.TaskRepository
	taskTypeRepo repository.TaskTypeRepository
}

func NewBonusRuleService(ruleRepo repository.BonusRuleRepository, taskRepo repository.TaskRepository, taskTypeRepo repository.TaskTypeRepository) BonusRuleService {
	return &bonusRuleService{ruleRepo: ruleRepo, taskRepo: taskRepo, taskTypeRepo: taskTypeRepo}
}

func (s *bonusRuleService) CreateRule(rule *models.BonusRule, createdBy uint) error {
	if err := s.validateScopeRefs(rule); err != nil {
		return err
	}

	exists, err := s.ruleRepo.ExistsByNameInScope(rule.Name, rule.GroupID, 0)
	if err != nil {
		return err
	}
	if exists {
		return apperrors.Conflict("rule name already used in this scope: "+rule.Name, nil)
	}

	rule.CreatedBy = createdBy
	rule.UpdatedBy = createdBy
	if rule.ConditionType == "" {
		rule.ConditionType = models.ConditionDefault
	}
	return s.ruleRepo.Create(rule)
}

func (s *bonusRuleService) GetRuleByID(id uint) (*models.BonusRule, error) {
	rule, err := s.ruleRepo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("bonus rule %d not found", id)
	}
	return rule, err
}

func (s *bonusRuleService) UpdateRule(rule *models.BonusRule, updatedBy uint) error {
	existing, err := s.GetRuleByID(rule.ID)
	if err != nil {
		return err
	}

	if err := s.validateScopeRefs(rule); err != nil {
		return err
	}

	if rule.Name != existing.Name || !uintPtrEqual(rule.GroupID, existing.GroupID) {
		exists, err := s.ruleRepo.ExistsByNameInScope(rule.Name, rule.GroupID, rule.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.Conflict("rule name already used in this scope: "+rule.Name, nil)
		}
	}

	rule.CreatedBy = existing.CreatedBy
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedBy = updatedBy
	return s.ruleRepo.Update(rule)
}

func (s *bonusRuleService) DeleteRule(id uint) error {
	if _, err := s.GetRuleByID(id); err != nil {
		return err
	}
	return s.ruleRepo.Delete(id)
}

func (s *bonusRuleService) ListRules(filter repository.RuleFilter) ([]models.BonusRule, error) {
	return s.ruleRepo.List(filter)
}

func (s *bonusRuleService) GetApplicableRules(groupID, taskID, taskTypeID *uint) ([]models.BonusRule, error) {
	now := time.Now().UTC()

	rules, err := s.ruleRepo.FindApplicable(groupID, taskID, taskTypeID, now)
	if err != nil {
		return nil, err
	}

	sortRulesBySpecificity(rules)
	log.Printf("Resolved %d applicable bonus rules for group=%v task=%v task_type=%v", len(rules), uintPtrString(groupID), uintPtrString(taskID), uintPtrString(taskTypeID))
	return rules, nil
}

func (s *bonusRuleService) validateScopeRefs(rule *models.BonusRule) error {
	if rule.TaskID != nil {
		if _, err := s.taskRepo.GetByID(*rule.TaskID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("task %d not found", *rule.TaskID)
			}
			return err
		}
	}
	if rule.TaskTypeID != nil {
		if _, err := s.taskTypeRepo.GetByID(*rule.TaskTypeID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("task type %d not found", *rule.TaskTypeID)
			}
			return err
		}
	}
	return nil
}

// sortRulesBySpecificity orders task-pinned rules before task-type rules
// before group rules before global rules. Names break ties so the result
// is stable for equal specificity; the ordering never decides the award.
func sortRulesBySpecificity(rules []models.BonusRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		si, sj := rules[i].Specificity(), rules[j].Specificity()
		if si != sj {
			return si > sj
		}
		return rules[i].Name < rules[j].Name
	})
}

func uintPtrEqual(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func uintPtrString(v *uint) interface{} {
	if v == nil {
		return "none"
	}
	return *v
}
