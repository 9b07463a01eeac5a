package repository

import (
	"time"

	"kudos/internal/models"

	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(notification *models.Notification) error
	MarkSent(id uint, sentAt time.Time) error
	ListByUser(userID uint, limit int) ([]models.Notification, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(notification *models.Notification) error {
	return r.db.Create(notification).Error
}

func (r *notificationRepository) MarkSent(id uint, sentAt time.Time) error {
	return r.db.Model(&models.Notification{}).Where("id = ?", id).Updates(map[string]interface{}{
		"sent":    true,
		"sent_at": sentAt,
	}).Error
}

func (r *notificationRepository) ListByUser(userID uint, limit int) ([]models.Notification, error) {
	query := r.db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var notifications []models.Notification
	err := query.Find(&notifications).Error
	return notifications, err
}
