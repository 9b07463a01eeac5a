package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kudos/internal/apperrors"
	"kudos/internal/models"
	"kudos/internal/repository"
)

type fakeRuleRepo struct {
	rules  map[uint]*models.BonusRule
	nextID uint

	applicable     []models.BonusRule
	applicableErr  error
	lastFindAt     time.Time
	lastFindCalled bool
}

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{rules: make(map[uint]*models.BonusRule), nextID: 1}
}

func (f *fakeRuleRepo) Create(rule *models.BonusRule) error {
	rule.ID = f.nextID
	f.nextID++
	stored := *rule
	f.rules[rule.ID] = &stored
	return nil
}

func (f *fakeRuleRepo) GetByID(id uint) (*models.BonusRule, error) {
	stored, ok := f.rules[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	found := *stored
	return &found, nil
}

func (f *fakeRuleRepo) Update(rule *models.BonusRule) error {
	stored := *rule
	f.rules[rule.ID] = &stored
	return nil
}

func (f *fakeRuleRepo) Delete(id uint) error {
	delete(f.rules, id)
	return nil
}

func (f *fakeRuleRepo) List(filter repository.RuleFilter) ([]models.BonusRule, error) {
	var rules []models.BonusRule
	for _, r := range f.rules {
		rules = append(rules, *r)
	}
	return rules, nil
}

func (f *fakeRuleRepo) ExistsByNameInScope(name string, groupID *uint, excludeID uint) (bool, error) {
	for _, r := range f.rules {
		if r.ID == excludeID || r.Name != name {
			continue
		}
		if uintPtrEqual(r.GroupID, groupID) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRuleRepo) FindApplicable(groupID, taskID, taskTypeID *uint, now time.Time) ([]models.BonusRule, error) {
	f.lastFindCalled = true
	f.lastFindAt = now
	return f.applicable, f.applicableErr
}

func newRuleServiceFixture() (BonusRuleService, *fakeRuleRepo) {
	ruleRepo := newFakeRuleRepo()
	tasks := &fakeTaskRepo{tasks: map[uint]*models.Task{
		1: {ID: 1, Title: "known task", IsActive: true},
	}}
	taskTypes := &fakeTaskTypeRepo{types: map[uint]*models.TaskType{
		1: {ID: 1, Code: "chore"},
	}}
	return NewBonusRuleService(ruleRepo, tasks, taskTypes), ruleRepo
}

type fakeTaskTypeRepo struct {
	types map[uint]*models.TaskType
}

func (f *fakeTaskTypeRepo) Create(taskType *models.TaskType) error { return nil }
func (f *fakeTaskTypeRepo) GetByID(id uint) (*models.TaskType, error) {
	t, ok := f.types[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return t, nil
}
func (f *fakeTaskTypeRepo) GetByCode(code string) (*models.TaskType, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeTaskTypeRepo) GetAll() ([]models.TaskType, error) { return nil, nil }

func TestCreateRule_DefaultsConditionType(t *testing.T) {
	service, repo := newRuleServiceFixture()
	rule := &models.BonusRule{Name: "base", Amount: decimal.NewFromInt(5)}
	if err := service.CreateRule(rule, 11); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule.ConditionType != models.ConditionDefault {
		t.Fatalf("expected DEFAULT condition type, got %s", rule.ConditionType)
	}
	if rule.CreatedBy != 11 || rule.UpdatedBy != 11 {
		t.Fatalf("audit fields not set: %+v", rule)
	}
	if len(repo.rules) != 1 {
		t.Fatalf("expected 1 stored rule, got %d", len(repo.rules))
	}
}

func TestCreateRule_NameConflictInScope(t *testing.T) {
	service, _ := newRuleServiceFixture()
	first := &models.BonusRule{Name: "weekly", GroupID: uintPtr(7), Amount: decimal.NewFromInt(5)}
	if err := service.CreateRule(first, 11); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dup := &models.BonusRule{Name: "weekly", GroupID: uintPtr(7), Amount: decimal.NewFromInt(9)}
	err := service.CreateRule(dup, 11)
	if !apperrors.IsKind(err, apperrors.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// The same name in a different group is a different scope.
	other := &models.BonusRule{Name: "weekly", GroupID: uintPtr(8), Amount: decimal.NewFromInt(9)}
	if err := service.CreateRule(other, 11); err != nil {
		t.Fatalf("same name in another group must be allowed, got %v", err)
	}
}

func TestCreateRule_UnknownTaskRef(t *testing.T) {
	service, _ := newRuleServiceFixture()
	rule := &models.BonusRule{Name: "pinned", TaskID: uintPtr(999), Amount: decimal.NewFromInt(5)}
	err := service.CreateRule(rule, 11)
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("expected not_found for unknown task, got %v", err)
	}
}

func TestCreateRule_UnknownTaskTypeRef(t *testing.T) {
	service, _ := newRuleServiceFixture()
	rule := &models.BonusRule{Name: "typed", TaskTypeID: uintPtr(999), Amount: decimal.NewFromInt(5)}
	err := service.CreateRule(rule, 11)
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("expected not_found for unknown task type, got %v", err)
	}
}

func TestUpdateRule_KeepsAuditTrail(t *testing.T) {
	service, repo := newRuleServiceFixture()
	rule := &models.BonusRule{Name: "base", Amount: decimal.NewFromInt(5)}
	if err := service.CreateRule(rule, 11); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	created := repo.rules[rule.ID].CreatedBy

	updated := *rule
	updated.Amount = decimal.NewFromInt(8)
	if err := service.UpdateRule(&updated, 22); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.CreatedBy != created {
		t.Fatalf("created_by must survive updates, got %d", updated.CreatedBy)
	}
	if updated.UpdatedBy != 22 {
		t.Fatalf("updated_by not recorded, got %d", updated.UpdatedBy)
	}
}

func TestDeleteRule_NotFound(t *testing.T) {
	service, _ := newRuleServiceFixture()
	err := service.DeleteRule(999)
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestGetApplicableRules_SortsAndUsesUTCNow(t *testing.T) {
	service, repo := newRuleServiceFixture()
	repo.applicable = []models.BonusRule{
		{ID: 1, Name: "global"},
		{ID: 2, Name: "grouped", GroupID: uintPtr(7)},
		{ID: 3, Name: "pinned", TaskID: uintPtr(1)},
		{ID: 4, Name: "typed", TaskTypeID: uintPtr(3)},
	}

	rules, err := service.GetApplicableRules(uintPtr(7), uintPtr(1), uintPtr(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOrder := []uint{3, 4, 2, 1}
	for i, want := range wantOrder {
		if rules[i].ID != want {
			t.Fatalf("position %d: expected rule %d, got %d", i, want, rules[i].ID)
		}
	}
	if !repo.lastFindCalled {
		t.Fatal("repository was not queried")
	}
	if repo.lastFindAt.Location() != time.UTC {
		t.Fatalf("validity window must be evaluated in UTC, got %v", repo.lastFindAt.Location())
	}
}

func TestSortRulesBySpecificity_NameBreaksTies(t *testing.T) {
	rules := []models.BonusRule{
		{ID: 1, Name: "zeta", GroupID: uintPtr(7)},
		{ID: 2, Name: "alpha", GroupID: uintPtr(7)},
		{ID: 3, Name: "mid", GroupID: uintPtr(7), TaskTypeID: uintPtr(3)},
	}
	sortRulesBySpecificity(rules)

	if rules[0].ID != 3 {
		t.Fatalf("task-type rule must sort first, got %d", rules[0].ID)
	}
	if rules[1].ID != 2 || rules[2].ID != 1 {
		t.Fatalf("equal specificity must order by name, got %d then %d", rules[1].ID, rules[2].ID)
	}
}
