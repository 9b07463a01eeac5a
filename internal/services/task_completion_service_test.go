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

type fakeTaskRepo struct {
	tasks map[uint]*models.Task
}

func (f *fakeTaskRepo) Create(task *models.Task) error { f.tasks[task.ID] = task; return nil }
func (f *fakeTaskRepo) GetByID(id uint) (*models.Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return task, nil
}
func (f *fakeTaskRepo) GetByGroup(groupID uint) ([]models.Task, error) { return nil, nil }
func (f *fakeTaskRepo) Update(task *models.Task) error                 { return nil }
func (f *fakeTaskRepo) Delete(id uint) error                           { return nil }

type fakeUserRepo struct {
	users map[uint]*models.User
}

func (f *fakeUserRepo) Create(user *models.User) error { f.users[user.ID] = user; return nil }
func (f *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}
func (f *fakeUserRepo) GetByUsername(username string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeUserRepo) GetAll() ([]models.User, error) { return nil, nil }
func (f *fakeUserRepo) Update(user *models.User) error { return nil }
func (f *fakeUserRepo) Delete(id uint) error           { return nil }

type fakeCompletionRepo struct {
	completions map[uint]*models.TaskCompletion
	nextID      uint
	denyCAS     bool
	staleReads  bool
}

func newFakeCompletionRepo() *fakeCompletionRepo {
	return &fakeCompletionRepo{completions: make(map[uint]*models.TaskCompletion), nextID: 1}
}

// Create mirrors the live-completion unique index: at most one
// non-rejected row per (task, user) unless the task is repeatable.
func (f *fakeCompletionRepo) Create(completion *models.TaskCompletion) error {
	if !completion.TaskRepeatable {
		for _, c := range f.completions {
			if c.TaskID == completion.TaskID && c.UserID == completion.UserID && c.Status != models.CompletionRejected {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	completion.ID = f.nextID
	f.nextID++
	stored := *completion
	f.completions[completion.ID] = &stored
	return nil
}

func (f *fakeCompletionRepo) GetByID(id uint) (*models.TaskCompletion, error) {
	stored, ok := f.completions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	found := *stored
	return &found, nil
}

func (f *fakeCompletionRepo) FindBlocking(taskID, userID uint) (*models.TaskCompletion, error) {
	if f.staleReads {
		return nil, nil
	}
	for _, c := range f.completions {
		if c.TaskID == taskID && c.UserID == userID && c.Status != models.CompletionRejected {
			found := *c
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeCompletionRepo) CountTerminalPositive(userID uint, taskID *uint, excludeID uint) (int64, error) {
	var count int64
	for _, c := range f.completions {
		if c.UserID != userID || c.ID == excludeID || !c.Status.IsTerminalPositive() {
			continue
		}
		if taskID != nil && c.TaskID != *taskID {
			continue
		}
		count++
	}
	return count, nil
}

func (f *fakeCompletionRepo) UpdateStatusIfPending(id uint, status models.CompletionStatus, reviewerID uint, notes string, reviewedAt time.Time) (bool, error) {
	if f.denyCAS {
		return false, nil
	}
	stored, ok := f.completions[id]
	if !ok || stored.Status != models.CompletionPendingApproval {
		return false, nil
	}
	stored.Status = status
	stored.ReviewNotes = notes
	stored.ReviewedBy = &reviewerID
	stored.ReviewedAt = &reviewedAt
	return true, nil
}

func (f *fakeCompletionRepo) ListByTask(taskID uint, status *models.CompletionStatus) ([]models.TaskCompletion, error) {
	return nil, nil
}

func (f *fakeCompletionRepo) ListByUser(userID uint, status *models.CompletionStatus) ([]models.TaskCompletion, error) {
	return nil, nil
}

type fakeLedgerRepo struct {
	entries []models.PointsTransaction
}

func (f *fakeLedgerRepo) Record(transaction *models.PointsTransaction) error {
	transaction.ID = uint(len(f.entries) + 1)
	f.entries = append(f.entries, *transaction)
	return nil
}

func (f *fakeLedgerRepo) ListByUser(userID uint, limit int) ([]models.PointsTransaction, error) {
	return f.entries, nil
}

func (f *fakeLedgerRepo) GetBalance(userID uint) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range f.entries {
		if e.UserID == userID {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

type fakeAtomic struct {
	completions repository.CompletionRepository
	ledger      repository.LedgerRepository
}

func (f *fakeAtomic) Transaction(fn func(completions repository.CompletionRepository, ledger repository.LedgerRepository) error) error {
	return fn(f.completions, f.ledger)
}

type stubCalculator struct {
	amount *decimal.Decimal
	ruleID *uint
	err    error
	calls  int
}

func (s *stubCalculator) CalculateBonusForTaskCompletion(task *models.Task, user *models.User, completion *models.TaskCompletion) (*decimal.Decimal, *uint, error) {
	s.calls++
	return s.amount, s.ruleID, s.err
}

func (s *stubCalculator) RegisterCondition(models.ConditionType, ConditionFunc) {}

type recordingNotifier struct {
	reviewed []uint
	awarded  []decimal.Decimal
}

func (r *recordingNotifier) NotifyCompletionReviewed(completion *models.TaskCompletion) {
	r.reviewed = append(r.reviewed, completion.ID)
}

func (r *recordingNotifier) NotifyBonusAwarded(userID uint, amount decimal.Decimal, taskTitle string) {
	r.awarded = append(r.awarded, amount)
}

type recordingInvalidator struct {
	userIDs []uint
}

func (r *recordingInvalidator) DeleteUserBalance(userID uint) error {
	r.userIDs = append(r.userIDs, userID)
	return nil
}

type workflowFixture struct {
	service     TaskCompletionService
	tasks       *fakeTaskRepo
	users       *fakeUserRepo
	completions *fakeCompletionRepo
	ledger      *fakeLedgerRepo
	calculator  *stubCalculator
	notifier    *recordingNotifier
	invalidator *recordingInvalidator
}

func newWorkflowFixture() *workflowFixture {
	reviewType := &models.TaskType{ID: 1, Code: "chore", RequiresApproval: true}
	autoType := &models.TaskType{ID: 2, Code: "errand", RequiresApproval: false}

	tasks := &fakeTaskRepo{tasks: map[uint]*models.Task{
		1: {ID: 1, Title: "reviewed task", GroupID: uintPtr(7), TaskTypeID: uintPtr(1), TaskType: reviewType, IsActive: true},
		2: {ID: 2, Title: "auto task", GroupID: uintPtr(7), TaskTypeID: uintPtr(2), TaskType: autoType, IsActive: true},
		3: {ID: 3, Title: "repeatable task", GroupID: uintPtr(7), TaskTypeID: uintPtr(1), TaskType: reviewType, IsRepeatable: true, IsActive: true},
		4: {ID: 4, Title: "retired task", TaskType: reviewType, IsActive: false},
	}}
	users := &fakeUserRepo{users: map[uint]*models.User{
		10: {ID: 10, Username: "alice"},
		11: {ID: 11, Username: "bob", Role: string(models.Admin)},
	}}

	completions := newFakeCompletionRepo()
	ledger := &fakeLedgerRepo{}
	calculator := &stubCalculator{}
	notifier := &recordingNotifier{}
	invalidator := &recordingInvalidator{}

	service := NewTaskCompletionService(
		tasks, users, completions,
		&fakeAtomic{completions: completions, ledger: ledger},
		calculator, notifier, invalidator,
	)
	return &workflowFixture{
		service:     service,
		tasks:       tasks,
		users:       users,
		completions: completions,
		ledger:      ledger,
		calculator:  calculator,
		notifier:    notifier,
		invalidator: invalidator,
	}
}

func TestSubmitCompletion_TaskNotFound(t *testing.T) {
	f := newWorkflowFixture()
	_, err := f.service.SubmitCompletion(999, 10, "")
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestSubmitCompletion_UserNotFound(t *testing.T) {
	f := newWorkflowFixture()
	_, err := f.service.SubmitCompletion(1, 999, "")
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestSubmitCompletion_InactiveTask(t *testing.T) {
	f := newWorkflowFixture()
	_, err := f.service.SubmitCompletion(4, 10, "")
	if !apperrors.IsKind(err, apperrors.KindInvalidState) {
		t.Fatalf("expected invalid_state, got %v", err)
	}
}

func TestSubmitCompletion_PendingWhenApprovalRequired(t *testing.T) {
	f := newWorkflowFixture()
	completion, err := f.service.SubmitCompletion(1, 10, "done early")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completion.Status != models.CompletionPendingApproval {
		t.Fatalf("expected PENDING_APPROVAL, got %s", completion.Status)
	}
	if completion.CompletedAt == nil {
		t.Fatal("completed_at must be set at submission")
	}
	if f.calculator.calls != 0 {
		t.Fatalf("pending submission must not trigger the award engine, got %d calls", f.calculator.calls)
	}
}

func TestSubmitCompletion_ImmediateCompleteAwards(t *testing.T) {
	f := newWorkflowFixture()
	amount := decimal.NewFromInt(5)
	f.calculator.amount = &amount
	f.calculator.ruleID = uintPtr(3)

	completion, err := f.service.SubmitCompletion(2, 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completion.Status != models.CompletionCompleted {
		t.Fatalf("expected COMPLETED, got %s", completion.Status)
	}
	if len(f.ledger.entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(f.ledger.entries))
	}
	entry := f.ledger.entries[0]
	if !entry.Amount.Equal(amount) || entry.Flow != models.FlowCredit || entry.Type != models.TransactionTaskReward {
		t.Fatalf("unexpected ledger entry: %+v", entry)
	}
	if entry.RuleID == nil || *entry.RuleID != 3 {
		t.Fatalf("ledger entry must reference the winning rule, got %v", entry.RuleID)
	}
	if len(f.notifier.awarded) != 1 || len(f.invalidator.userIDs) != 1 {
		t.Fatal("award must notify the user and invalidate the balance cache")
	}
}

func TestSubmitCompletion_NonRepeatableDoubleSubmission(t *testing.T) {
	f := newWorkflowFixture()
	if _, err := f.service.SubmitCompletion(1, 10, ""); err != nil {
		t.Fatalf("first submission failed: %v", err)
	}

	_, err := f.service.SubmitCompletion(1, 10, "")
	if !apperrors.IsKind(err, apperrors.KindInvalidState) {
		t.Fatalf("expected invalid_state on double submission, got %v", err)
	}
}

func TestSubmitCompletion_AllowedAfterRejection(t *testing.T) {
	f := newWorkflowFixture()
	first, err := f.service.SubmitCompletion(1, 10, "")
	if err != nil {
		t.Fatalf("first submission failed: %v", err)
	}

	if _, err := f.service.ReviewCompletion(first.ID, models.CompletionRejected, 11, "sloppy"); err != nil {
		t.Fatalf("rejection failed: %v", err)
	}

	if _, err := f.service.SubmitCompletion(1, 10, "second try"); err != nil {
		t.Fatalf("re-submission after rejection must succeed, got %v", err)
	}
}

func TestSubmitCompletion_RepeatableTaskAllowsMultiple(t *testing.T) {
	f := newWorkflowFixture()
	if _, err := f.service.SubmitCompletion(3, 10, ""); err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	if _, err := f.service.SubmitCompletion(3, 10, ""); err != nil {
		t.Fatalf("repeatable task must allow a second submission, got %v", err)
	}
}

func TestSubmitCompletion_RepeatableTaskAfterApproval(t *testing.T) {
	f := newWorkflowFixture()
	first, err := f.service.SubmitCompletion(3, 10, "")
	if err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	if _, err := f.service.ReviewCompletion(first.ID, models.CompletionApproved, 11, ""); err != nil {
		t.Fatalf("approval failed: %v", err)
	}

	// The approved row is live but must not block a new attempt on a
	// repeatable task.
	second, err := f.service.SubmitCompletion(3, 10, "again")
	if err != nil {
		t.Fatalf("repeatable task must allow re-submission after approval, got %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("re-submission must create a new completion row")
	}
}

func TestSubmitCompletion_ConcurrentDuplicateSurfacesConflict(t *testing.T) {
	f := newWorkflowFixture()
	if _, err := f.service.SubmitCompletion(1, 10, ""); err != nil {
		t.Fatalf("first submission failed: %v", err)
	}

	// A racing submission that misses the existence check still hits the
	// storage uniqueness guard.
	f.completions.staleReads = true
	_, err := f.service.SubmitCompletion(1, 10, "")
	if !apperrors.IsKind(err, apperrors.KindConflict) {
		t.Fatalf("expected conflict from the uniqueness guard, got %v", err)
	}
}

func TestReviewCompletion_InvalidTargetStatus(t *testing.T) {
	f := newWorkflowFixture()
	completion, _ := f.service.SubmitCompletion(1, 10, "")

	_, err := f.service.ReviewCompletion(completion.ID, models.CompletionCompleted, 11, "")
	if !apperrors.IsKind(err, apperrors.KindInvalidArgument) {
		t.Fatalf("expected invalid_argument for status %s, got %v", models.CompletionCompleted, err)
	}
}

func TestReviewCompletion_NotFound(t *testing.T) {
	f := newWorkflowFixture()
	_, err := f.service.ReviewCompletion(999, models.CompletionApproved, 11, "")
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestReviewCompletion_TaskGoneBeforeReview(t *testing.T) {
	f := newWorkflowFixture()
	completion, _ := f.service.SubmitCompletion(1, 10, "")
	delete(f.tasks.tasks, 1)

	_, err := f.service.ReviewCompletion(completion.ID, models.CompletionApproved, 11, "")
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("expected not_found when the task vanished, got %v", err)
	}
}

func TestReviewCompletion_ApproveAwardsOnce(t *testing.T) {
	f := newWorkflowFixture()
	amount := decimal.NewFromInt(15)
	f.calculator.amount = &amount
	f.calculator.ruleID = uintPtr(9)

	completion, _ := f.service.SubmitCompletion(1, 10, "")
	reviewed, err := f.service.ReviewCompletion(completion.ID, models.CompletionApproved, 11, "nice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reviewed.Status != models.CompletionApproved {
		t.Fatalf("expected APPROVED, got %s", reviewed.Status)
	}
	if reviewed.ReviewedBy == nil || *reviewed.ReviewedBy != 11 {
		t.Fatalf("reviewer id not recorded: %v", reviewed.ReviewedBy)
	}
	if f.calculator.calls != 1 {
		t.Fatalf("expected exactly one calculation, got %d", f.calculator.calls)
	}
	if len(f.ledger.entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(f.ledger.entries))
	}
	if len(f.notifier.reviewed) != 1 {
		t.Fatal("review outcome notification missing")
	}

	// Second review of the same completion is a state-machine violation.
	_, err = f.service.ReviewCompletion(completion.ID, models.CompletionApproved, 11, "")
	if !apperrors.IsKind(err, apperrors.KindInvalidState) {
		t.Fatalf("expected invalid_state on double review, got %v", err)
	}
	if len(f.ledger.entries) != 1 {
		t.Fatalf("double review must not award again, got %d entries", len(f.ledger.entries))
	}
}

func TestReviewCompletion_RejectDoesNotAward(t *testing.T) {
	f := newWorkflowFixture()
	amount := decimal.NewFromInt(15)
	f.calculator.amount = &amount

	completion, _ := f.service.SubmitCompletion(1, 10, "")
	reviewed, err := f.service.ReviewCompletion(completion.ID, models.CompletionRejected, 11, "not done")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reviewed.Status != models.CompletionRejected {
		t.Fatalf("expected REJECTED, got %s", reviewed.Status)
	}
	if f.calculator.calls != 0 {
		t.Fatalf("rejection must not trigger the award engine, got %d calls", f.calculator.calls)
	}
	if len(f.ledger.entries) != 0 {
		t.Fatalf("rejection must not write to the ledger, got %d entries", len(f.ledger.entries))
	}
}

func TestReviewCompletion_PenaltyRecordedAsDebit(t *testing.T) {
	f := newWorkflowFixture()
	amount := decimal.NewFromInt(-10)
	f.calculator.amount = &amount
	f.calculator.ruleID = uintPtr(4)

	completion, _ := f.service.SubmitCompletion(1, 10, "")
	if _, err := f.service.ReviewCompletion(completion.ID, models.CompletionApproved, 11, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry := f.ledger.entries[0]
	if entry.Flow != models.FlowDebit || entry.Type != models.TransactionTaskPenalty {
		t.Fatalf("negative award must be a debit penalty, got %+v", entry)
	}
}

func TestReviewCompletion_ConcurrentReviewerLosesCAS(t *testing.T) {
	f := newWorkflowFixture()
	amount := decimal.NewFromInt(15)
	f.calculator.amount = &amount
	completion, _ := f.service.SubmitCompletion(1, 10, "")

	// Another reviewer wins between the pre-check and the compare-and-set.
	f.completions.denyCAS = true

	_, err := f.service.ReviewCompletion(completion.ID, models.CompletionApproved, 11, "")
	if !apperrors.IsKind(err, apperrors.KindInvalidState) {
		t.Fatalf("expected invalid_state when the status update races, got %v", err)
	}
	if len(f.ledger.entries) != 0 {
		t.Fatalf("a lost review race must not award, got %d entries", len(f.ledger.entries))
	}
}
