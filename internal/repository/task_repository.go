package repository

import (
	"kudos/internal/models"

	"gorm.io/gorm"
)

type TaskRepository interface {
	Create(task *models.Task) error
	GetByID(id uint) (*models.Task, error)
	GetByGroup(groupID uint) ([]models.Task, error)
	Update(task *models.Task) error
	Delete(id uint) error
}

type TaskTypeRepository interface {
	Create(taskType *models.TaskType) error
	GetByID(id uint) (*models.TaskType, error)
	GetByCode(code string) (*models.TaskType, error)
	GetAll() ([]models.TaskType, error)
}

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(task *models.Task) error {
	return r.db.Create(task).Error
}

func (r *taskRepository) GetByID(id uint) (*models.Task, error) {
	var task models.Task
	err := r.db.Preload("TaskType").First(&task, id).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) GetByGroup(groupID uint) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.Preload("TaskType").Where("group_id = ?", groupID).Find(&tasks).Error
	return tasks, err
}

func (r *taskRepository) Update(task *models.Task) error {
	return r.db.Save(task).Error
}

func (r *taskRepository) Delete(id uint) error {
	return r.db.Delete(&models.Task{}, id).Error
}

type taskTypeRepository struct {
	db *gorm.DB
}

func NewTaskTypeRepository(db *gorm.DB) TaskTypeRepository {
	return &taskTypeRepository{db: db}
}

func (r *taskTypeRepository) Create(taskType *models.TaskType) error {
	return r.db.Create(taskType).Error
}

func (r *taskTypeRepository) GetByID(id uint) (*models.TaskType, error) {
	var taskType models.TaskType
	err := r.db.First(&taskType, id).Error
	if err != nil {
		return nil, err
	}
	return &taskType, nil
}

func (r *taskTypeRepository) GetByCode(code string) (*models.TaskType, error) {
	var taskType models.TaskType
	err := r.db.Where("code = ?", code).First(&taskType).Error
	if err != nil {
		return nil, err
	}
	return &taskType, nil
}

func (r *taskTypeRepository) GetAll() ([]models.TaskType, error) {
	var taskTypes []models.TaskType
	err := r.db.Find(&taskTypes).Error
	return taskTypes, err
}
