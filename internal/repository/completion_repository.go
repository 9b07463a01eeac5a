package repository

import (
	"errors"
	"time"

	"kudos/internal/models"

	"gorm.io/gorm"
)

type CompletionRepository interface {
	Create(completion *models.TaskCompletion) error
	GetByID(id uint) (*models.TaskCompletion, error)
	// FindBlocking returns an existing completion for (task, user) whose
	// status is not REJECTED, i.e. one that blocks re-submission of a
	// non-repeatable task. Returns nil when none exists.
	FindBlocking(taskID, userID uint) (*models.TaskCompletion, error)
	// CountTerminalPositive counts a user's approved/completed
	// completions, optionally scoped to one task, excluding excludeID.
	CountTerminalPositive(userID uint, taskID *uint, excludeID uint) (int64, error)
	// UpdateStatusIfPending applies the review transition with a
	// compare-and-set on the current PENDING_APPROVAL status. Returns
	// false when another reviewer got there first.
	UpdateStatusIfPending(id uint, status models.CompletionStatus, reviewerID uint, notes string, reviewedAt time.Time) (bool, error)
	ListByTask(taskID uint, status *models.CompletionStatus) ([]models.TaskCompletion, error)
	ListByUser(userID uint, status *models.CompletionStatus) ([]models.TaskCompletion, error)
}

type completionRepository struct {
	db *gorm.DB
}

func NewCompletionRepository(db *gorm.DB) CompletionRepository {
	return &completionRepository{db: db}
}

func (r *completionRepository) Create(completion *models.TaskCompletion) error {
	return r.db.Create(completion).Error
}

func (r *completionRepository) GetByID(id uint) (*models.TaskCompletion, error) {
	var completion models.TaskCompletion
	err := r.db.Preload("Task").Preload("Task.TaskType").First(&completion, id).Error
	if err != nil {
		return nil, err
	}
	return &completion, nil
}

func (r *completionRepository) FindBlocking(taskID, userID uint) (*models.TaskCompletion, error) {
	var completion models.TaskCompletion
	err := r.db.
		Where("task_id = ? AND user_id = ? AND status <> ?", taskID, userID, models.CompletionRejected).
		First(&completion).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &completion, nil
}

func (r *completionRepository) CountTerminalPositive(userID uint, taskID *uint, excludeID uint) (int64, error) {
	query := r.db.Model(&models.TaskCompletion{}).
		Where("user_id = ?", userID).
		Where("status IN ?", []models.CompletionStatus{models.CompletionApproved, models.CompletionCompleted})
	if taskID != nil {
		query = query.Where("task_id = ?", *taskID)
	}
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}

func (r *completionRepository) UpdateStatusIfPending(id uint, status models.CompletionStatus, reviewerID uint, notes string, reviewedAt time.Time) (bool, error) {
	result := r.db.Model(&models.TaskCompletion{}).
		Where("id = ? AND status = ?", id, models.CompletionPendingApproval).
		Updates(map[string]interface{}{
			"status":       status,
			"review_notes": notes,
			"reviewed_by":  reviewerID,
			"reviewed_at":  reviewedAt,
			"updated_at":   reviewedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *completionRepository) ListByTask(taskID uint, status *models.CompletionStatus) ([]models.TaskCompletion, error) {
	query := r.db.Where("task_id = ?", taskID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var completions []models.TaskCompletion
	err := query.Order("created_at DESC").Find(&completions).Error
	return completions, err
}

func (r *completionRepository) ListByUser(userID uint, status *models.CompletionStatus) ([]models.TaskCompletion, error) {
	query := r.db.Preload("Task").Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var completions []models.TaskCompletion
	err := query.Order("created_at DESC").Find(&completions).Error
	return completions, err
}
