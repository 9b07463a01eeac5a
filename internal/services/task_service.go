package services

import (
	"errors"

	"gorm.io/gorm"

	"kudos/internal/apperrors"
	"kudos/internal/models"
	"kudos/internal/repository"
)

type TaskService interface {
	CreateTask(task *models.Task) error
	GetTaskByID(id uint) (*models.Task, error)
	GetTasksByGroup(groupID uint) ([]models.Task, error)
	UpdateTask(task *models.Task) error
	DeleteTask(id uint) error
	GetTaskTypes() ([]models.TaskType, error)
	CreateGroup(group *models.Group, createdBy uint) error
	GetGroups() ([]models.Group, error)
}

type taskService struct {
	taskRepo     repository.TaskRepository
	taskTypeRepo repository.TaskTypeRepository
	groupRepo    repository.GroupRepository
}

func NewTaskService(taskRepo repository.TaskRepository, taskTypeRepo repository.TaskTypeRepository, groupRepo repository.GroupRepository) TaskService {
	return &taskService{taskRepo: taskRepo, taskTypeRepo: taskTypeRepo, groupRepo: groupRepo}
}

func (s *taskService) CreateTask(task *models.Task) error {
	if task.TaskTypeID != nil {
		if _, err := s.taskTypeRepo.GetByID(*task.TaskTypeID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("task type %d not found", *task.TaskTypeID)
			}
			return err
		}
	}
	if task.GroupID != nil {
		if _, err := s.groupRepo.GetByID(*task.GroupID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("group %d not found", *task.GroupID)
			}
			return err
		}
	}
	return s.taskRepo.Create(task)
}

func (s *taskService) GetTaskByID(id uint) (*models.Task, error) {
	task, err := s.taskRepo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("task %d not found", id)
	}
	return task, err
}

func (s *taskService) GetTasksByGroup(groupID uint) ([]models.Task, error) {
	return s.taskRepo.GetByGroup(groupID)
}

func (s *taskService) UpdateTask(task *models.Task) error {
	return s.taskRepo.Update(task)
}

func (s *taskService) DeleteTask(id uint) error {
	return s.taskRepo.Delete(id)
}

func (s *taskService) GetTaskTypes() ([]models.TaskType, error) {
	return s.taskTypeRepo.GetAll()
}

func (s *taskService) CreateGroup(group *models.Group, createdBy uint) error {
	if group.Name == "" {
		return apperrors.InvalidArgument("group name is required")
	}
	group.CreatedBy = createdBy

	err := s.groupRepo.Create(group)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Conflict("group name already taken", err)
	}
	return err
}

func (s *taskService) GetGroups() ([]models.Group, error) {
	return s.groupRepo.GetAll()
}
