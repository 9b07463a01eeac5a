package services

import (
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"kudos/internal/models"
)

// RuleResolver is the slice of BonusRuleService the calculation engine
// consumes: candidates for a completion context, most specific first.
type RuleResolver interface {
	GetApplicableRules(groupID, taskID, taskTypeID *uint) ([]models.BonusRule, error)
}

// CompletionCounter counts a user's prior approved completions, globally
// (taskID nil) or for one task, excluding the completion under evaluation.
type CompletionCounter interface {
	CountTerminalPositive(userID uint, taskID *uint, excludeID uint) (int64, error)
}

// ConditionContext is the uniform input every condition strategy receives.
type ConditionContext struct {
	Rule       *models.BonusRule
	Task       *models.Task
	User       *models.User
	Completion *models.TaskCompletion
	Counter    CompletionCounter
}

// ConditionFunc is a pure predicate deciding whether one rule's condition
// holds for one completion. It must not mutate anything.
type ConditionFunc func(ctx *ConditionContext) (bool, error)

// BonusCalculationService decides which single bonus rule, if any, applies
// to an approved task completion. It never persists anything; the caller
// turns the returned amount into a ledger transaction.
type BonusCalculationService interface {
	// CalculateBonusForTaskCompletion returns the winning rule's amount
	// and id, or (nil, nil) when nothing applies.
	CalculateBonusForTaskCompletion(task *models.Task, user *models.User, completion *models.TaskCompletion) (*decimal.Decimal, *uint, error)
	// RegisterCondition adds or replaces a condition strategy. Built-in
	// types are registered on construction.
	RegisterCondition(conditionType models.ConditionType, fn ConditionFunc)
}

type bonusCalculationService struct {
	resolver   RuleResolver
	counter    CompletionCounter
	conditions map[models.ConditionType]ConditionFunc
}

func NewBonusCalculationService(resolver RuleResolver, counter CompletionCounter) BonusCalculationService {
	s := &bonusCalculationService{
		resolver:   resolver,
		counter:    counter,
		conditions: make(map[models.ConditionType]ConditionFunc),
	}
	s.RegisterCondition(models.ConditionDefault, conditionAlways)
	s.RegisterCondition(models.ConditionTaskCompletedOnTime, conditionCompletedOnTime)
	s.RegisterCondition(models.ConditionTaskCompletedEarly, conditionCompletedEarly)
	s.RegisterCondition(models.ConditionUserFirstTaskCompletion, conditionFirstCompletion)
	s.RegisterCondition(models.ConditionUserFirstSpecificCompletion, conditionFirstSpecificCompletion)
	return s
}

func (s *bonusCalculationService) RegisterCondition(conditionType models.ConditionType, fn ConditionFunc) {
	s.conditions[conditionType] = fn
}

func (s *bonusCalculationService) CalculateBonusForTaskCompletion(task *models.Task, user *models.User, completion *models.TaskCompletion) (*decimal.Decimal, *uint, error) {
	// Hard gate: nothing is fetched or evaluated for a completion that is
	// not approved/terminal-positive.
	if !completion.Status.IsTerminalPositive() {
		return nil, nil, nil
	}

	if task.GroupID == nil {
		log.Printf("Task %d has no group context; only global rules can apply", task.ID)
	}

	rules, err := s.resolver.GetApplicableRules(task.GroupID, &task.ID, task.TaskTypeID)
	if err != nil {
		return nil, nil, err
	}
	if len(rules) == 0 {
		return nil, nil, nil
	}

	var candidates []models.BonusRule
	for i := range rules {
		rule := &rules[i]
		if rule.Amount.IsZero() {
			continue
		}
		ok, err := s.checkRuleConditions(rule, task, user, completion)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			candidates = append(candidates, *rule)
		}
	}

	if len(candidates) == 0 {
		return nil, nil, nil
	}

	// Highest amount wins; equal amounts fall back to the newest rule.
	// Specificity already shaped the candidate set and does not override
	// a larger amount from a wider rule.
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].Amount.Equal(candidates[j].Amount) {
			return candidates[i].Amount.GreaterThan(candidates[j].Amount)
		}
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})

	winner := candidates[0]
	amount := winner.Amount
	log.Printf("Applied bonus rule %q (id=%d): %s points for user %d on task %d", winner.Name, winner.ID, amount.String(), user.ID, task.ID)
	return &amount, &winner.ID, nil
}

func (s *bonusCalculationService) checkRuleConditions(rule *models.BonusRule, task *models.Task, user *models.User, completion *models.TaskCompletion) (bool, error) {
	if !completion.Status.IsTerminalPositive() {
		return false, nil
	}

	fn, ok := s.conditions[rule.ConditionType]
	if !ok {
		// A misconfigured rule must not break calculation for the rest.
		log.Printf("Unknown condition type %q on rule %q (id=%d); treating as not met", rule.ConditionType, rule.Name, rule.ID)
		return false, nil
	}

	return fn(&ConditionContext{
		Rule:       rule,
		Task:       task,
		User:       user,
		Completion: completion,
		Counter:    s.counter,
	})
}

func conditionAlways(*ConditionContext) (bool, error) {
	return true, nil
}

func conditionCompletedOnTime(ctx *ConditionContext) (bool, error) {
	if ctx.Task.DueDate == nil || ctx.Completion.CompletedAt == nil {
		return false, nil
	}
	return !ctx.Completion.CompletedAt.After(*ctx.Task.DueDate), nil
}

func conditionCompletedEarly(ctx *ConditionContext) (bool, error) {
	minHoursEarly := ctx.Rule.ConditionConfig.FloatValue("min_hours_early", 0)
	if minHoursEarly <= 0 || ctx.Task.DueDate == nil || ctx.Completion.CompletedAt == nil {
		return false, nil
	}
	deadline := ctx.Task.DueDate.Add(-time.Duration(minHoursEarly * float64(time.Hour)))
	return !ctx.Completion.CompletedAt.After(deadline), nil
}

func conditionFirstCompletion(ctx *ConditionContext) (bool, error) {
	count, err := ctx.Counter.CountTerminalPositive(ctx.User.ID, nil, ctx.Completion.ID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func conditionFirstSpecificCompletion(ctx *ConditionContext) (bool, error) {
	count, err := ctx.Counter.CountTerminalPositive(ctx.User.ID, &ctx.Task.ID, ctx.Completion.ID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}
