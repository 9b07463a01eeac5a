package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kudos/internal/apperrors"
	"kudos/internal/models"
	"kudos/internal/repository"
)

// WorkflowNotifier receives best-effort notifications about workflow
// outcomes. Failures are logged, never propagated.
type WorkflowNotifier interface {
	NotifyCompletionReviewed(completion *models.TaskCompletion)
	NotifyBonusAwarded(userID uint, amount decimal.Decimal, taskTitle string)
}

// BalanceInvalidator drops a user's cached balance after a ledger write.
type BalanceInvalidator interface {
	DeleteUserBalance(userID uint) error
}

// TaskCompletionService is the completion state machine:
//
//	submit -> PENDING_APPROVAL -> APPROVED | REJECTED
//	submit -> COMPLETED (task type does not require approval)
//
// Transitions into APPROVED or COMPLETED are the only triggers of the
// bonus calculation engine, and the award ledger write commits in the
// same transaction as the transition.
type TaskCompletionService interface {
	SubmitCompletion(taskID, userID uint, notes string) (*models.TaskCompletion, error)
	ReviewCompletion(completionID uint, newStatus models.CompletionStatus, reviewerID uint, notes string) (*models.TaskCompletion, error)
	GetCompletion(id uint) (*models.TaskCompletion, error)
	ListCompletionsForTask(taskID uint, status *models.CompletionStatus) ([]models.TaskCompletion, error)
	ListCompletionsByUser(userID uint, status *models.CompletionStatus) ([]models.TaskCompletion, error)
}

type taskCompletionService struct {
	taskRepo       repository.TaskRepository
	userRepo       repository.UserRepository
	completionRepo repository.CompletionRepository
	atomic         repository.Atomic
	calculator     BonusCalculationService
	notifier       WorkflowNotifier
	balanceCache   BalanceInvalidator
}

func NewTaskCompletionService(
	taskRepo repository.TaskRepository,
	userRepo repository.UserRepository,
	completionRepo repository.CompletionRepository,
	atomic repository.Atomic,
	calculator BonusCalculationService,
	notifier WorkflowNotifier,
	balanceCache BalanceInvalidator,
) TaskCompletionService {
	return &taskCompletionService{
		taskRepo:       taskRepo,
		userRepo:       userRepo,
		completionRepo: completionRepo,
		atomic:         atomic,
		calculator:     calculator,
		notifier:       notifier,
		balanceCache:   balanceCache,
	}
}

func (s *taskCompletionService) SubmitCompletion(taskID, userID uint, notes string) (*models.TaskCompletion, error) {
	task, err := s.taskRepo.GetByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("task %d not found", taskID)
		}
		return nil, err
	}
	if !task.IsActive {
		return nil, apperrors.InvalidState("task %d is not active", taskID)
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user %d not found", userID)
		}
		return nil, err
	}

	// A prior non-rejected completion blocks re-submission unless the
	// task is repeatable. The unique index on non-terminal rows backs
	// this check against concurrent submissions.
	if !task.IsRepeatable {
		blocking, err := s.completionRepo.FindBlocking(taskID, userID)
		if err != nil {
			return nil, err
		}
		if blocking != nil {
			return nil, apperrors.InvalidState("task %d already completed by user %d and is not repeatable", taskID, userID)
		}
	}

	requiresApproval := true
	if task.TaskType != nil {
		requiresApproval = task.TaskType.RequiresApproval
	}
	initialStatus := models.CompletionPendingApproval
	if !requiresApproval {
		initialStatus = models.CompletionCompleted
	}

	now := time.Now().UTC()
	completion := &models.TaskCompletion{
		TaskID:         taskID,
		UserID:         userID,
		TaskRepeatable: task.IsRepeatable,
		Status:         initialStatus,
		CompletedAt:    &now,
		UserNotes:      notes,
	}

	var awarded *decimal.Decimal
	if initialStatus == models.CompletionCompleted {
		// Immediate terminal state: the completion row and any award
		// commit together.
		err = s.atomic.Transaction(func(completions repository.CompletionRepository, ledger repository.LedgerRepository) error {
			if err := completions.Create(completion); err != nil {
				return err
			}
			awarded, err = s.awardBonus(ledger, task, user, completion)
			return err
		})
	} else {
		err = s.completionRepo.Create(completion)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Conflict("completion already submitted", err)
		}
		return nil, err
	}

	log.Printf("Task %d marked as %s by user %d (completion %d)", taskID, initialStatus, userID, completion.ID)
	s.afterAward(user.ID, awarded, task.Title)
	return completion, nil
}

func (s *taskCompletionService) ReviewCompletion(completionID uint, newStatus models.CompletionStatus, reviewerID uint, notes string) (*models.TaskCompletion, error) {
	if newStatus != models.CompletionApproved && newStatus != models.CompletionRejected {
		return nil, apperrors.InvalidArgument("review status must be %s or %s, got %q", models.CompletionApproved, models.CompletionRejected, newStatus)
	}

	completion, err := s.completionRepo.GetByID(completionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("completion %d not found", completionID)
		}
		return nil, err
	}
	if completion.Status != models.CompletionPendingApproval {
		return nil, apperrors.InvalidState("completion %d is %s, only %s completions can be reviewed", completionID, completion.Status, models.CompletionPendingApproval)
	}

	task := completion.Task
	if task == nil {
		task, err = s.taskRepo.GetByID(completion.TaskID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.NotFound("task %d not found", completion.TaskID)
			}
			return nil, err
		}
	}
	user, err := s.userRepo.GetByID(completion.UserID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var awarded *decimal.Decimal
	err = s.atomic.Transaction(func(completions repository.CompletionRepository, ledger repository.LedgerRepository) error {
		applied, err := completions.UpdateStatusIfPending(completionID, newStatus, reviewerID, notes, now)
		if err != nil {
			return err
		}
		if !applied {
			// Another reviewer won the compare-and-set.
			return apperrors.InvalidState("completion %d is no longer pending approval", completionID)
		}

		completion.Status = newStatus
		completion.ReviewNotes = notes
		completion.ReviewedBy = &reviewerID
		completion.ReviewedAt = &now

		if newStatus == models.CompletionApproved {
			awarded, err = s.awardBonus(ledger, task, user, completion)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Completion %d reviewed as %s by user %d", completionID, newStatus, reviewerID)
	if s.notifier != nil {
		s.notifier.NotifyCompletionReviewed(completion)
	}
	s.afterAward(completion.UserID, awarded, task.Title)
	return completion, nil
}

// awardBonus runs the calculation engine and, when a rule wins, writes
// the ledger entry through the transaction-bound ledger repository.
func (s *taskCompletionService) awardBonus(ledger repository.LedgerRepository, task *models.Task, user *models.User, completion *models.TaskCompletion) (*decimal.Decimal, error) {
	amount, ruleID, err := s.calculator.CalculateBonusForTaskCompletion(task, user, completion)
	if err != nil {
		return nil, err
	}
	if amount == nil {
		return nil, nil
	}

	flow := models.FlowCredit
	transactionType := models.TransactionTaskReward
	if amount.IsNegative() {
		flow = models.FlowDebit
		transactionType = models.TransactionTaskPenalty
	}

	entry := &models.PointsTransaction{
		UserID:       user.ID,
		Amount:       *amount,
		Flow:         flow,
		Type:         transactionType,
		ReferenceID:  uuid.NewString(),
		RuleID:       ruleID,
		CompletionID: &completion.ID,
		Description:  fmt.Sprintf("bonus for task %q", task.Title),
	}
	if err := ledger.Record(entry); err != nil {
		return nil, err
	}
	return amount, nil
}

func (s *taskCompletionService) afterAward(userID uint, awarded *decimal.Decimal, taskTitle string) {
	if awarded == nil {
		return
	}
	if s.balanceCache != nil {
		if err := s.balanceCache.DeleteUserBalance(userID); err != nil {
			log.Printf("Failed to invalidate balance cache for user %d: %v", userID, err)
		}
	}
	if s.notifier != nil {
		s.notifier.NotifyBonusAwarded(userID, *awarded, taskTitle)
	}
}

func (s *taskCompletionService) GetCompletion(id uint) (*models.TaskCompletion, error) {
	completion, err := s.completionRepo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("completion %d not found", id)
	}
	return completion, err
}

func (s *taskCompletionService) ListCompletionsForTask(taskID uint, status *models.CompletionStatus) ([]models.TaskCompletion, error) {
	return s.completionRepo.ListByTask(taskID, status)
}

func (s *taskCompletionService) ListCompletionsByUser(userID uint, status *models.CompletionStatus) ([]models.TaskCompletion, error) {
	return s.completionRepo.ListByUser(userID, status)
}
