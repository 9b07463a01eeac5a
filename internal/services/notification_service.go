package services

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"kudos/internal/models"
	"kudos/internal/repository"
	"kudos/pkg/notify"
)

// NotificationService records notifications for workflow outcomes and
// delivers them through the outbound webhook client. Delivery is
// best-effort: a failed send is logged and the row keeps sent=false.
type NotificationService interface {
	WorkflowNotifier
	ListUserNotifications(userID uint, limit int) ([]models.Notification, error)
}

type notificationService struct {
	notificationRepo repository.NotificationRepository
	client           *notify.Client
}

func NewNotificationService(notificationRepo repository.NotificationRepository, client *notify.Client) NotificationService {
	return &notificationService{notificationRepo: notificationRepo, client: client}
}

func (s *notificationService) NotifyCompletionReviewed(completion *models.TaskCompletion) {
	title := "Task completion reviewed"
	message := fmt.Sprintf("Your completion #%d was %s.", completion.ID, completion.Status)
	if completion.ReviewNotes != "" {
		message += " Reviewer notes: " + completion.ReviewNotes
	}
	s.record(completion.UserID, title, message)
}

func (s *notificationService) NotifyBonusAwarded(userID uint, amount decimal.Decimal, taskTitle string) {
	title := "Points awarded"
	if amount.IsNegative() {
		title = "Points deducted"
	}
	message := fmt.Sprintf("%s points for task %q.", amount.String(), taskTitle)
	s.record(userID, title, message)
}

func (s *notificationService) ListUserNotifications(userID uint, limit int) ([]models.Notification, error) {
	return s.notificationRepo.ListByUser(userID, limit)
}

func (s *notificationService) record(userID uint, title, message string) {
	notification := &models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Channel: "webhook",
	}
	if err := s.notificationRepo.Create(notification); err != nil {
		log.Printf("Failed to store notification for user %d: %v", userID, err)
		return
	}

	if s.client == nil {
		return
	}
	if err := s.client.Send(userID, title, message); err != nil {
		log.Printf("Failed to deliver notification %d: %v", notification.ID, err)
		return
	}
	if err := s.notificationRepo.MarkSent(notification.ID, time.Now().UTC()); err != nil {
		log.Printf("Failed to mark notification %d as sent: %v", notification.ID, err)
	}
}
