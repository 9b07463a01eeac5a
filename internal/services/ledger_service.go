package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kudos/internal/apperrors"
	"kudos/internal/models"
	"kudos/internal/redis"
	"kudos/internal/repository"
)

// LedgerService is the read/adjust surface over the points ledger. Award
// writes happen inside the completion workflow; this service covers
// balances, history and manual admin adjustments.
type LedgerService interface {
	GetBalance(userID uint) (decimal.Decimal, error)
	ListTransactions(userID uint, limit int) ([]models.PointsTransaction, error)
	AdjustBalance(userID uint, amount decimal.Decimal, reason string, adjustedBy uint) (*models.PointsTransaction, error)
}

type ledgerService struct {
	ledgerRepo repository.LedgerRepository
	userRepo   repository.UserRepository
	cache      *redis.Client
}

func NewLedgerService(ledgerRepo repository.LedgerRepository, userRepo repository.UserRepository, cache *redis.Client) LedgerService {
	return &ledgerService{ledgerRepo: ledgerRepo, userRepo: userRepo, cache: cache}
}

func (s *ledgerService) GetBalance(userID uint) (decimal.Decimal, error) {
	if s.cache != nil {
		if balance, found, err := s.cache.GetUserBalance(userID); err == nil && found {
			return balance, nil
		}
	}

	balance, err := s.ledgerRepo.GetBalance(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, apperrors.NotFound("user %d not found", userID)
		}
		return decimal.Zero, err
	}

	if s.cache != nil {
		if err := s.cache.SetUserBalance(userID, balance); err != nil {
			log.Printf("Failed to cache balance for user %d: %v", userID, err)
		}
	}
	return balance, nil
}

func (s *ledgerService) ListTransactions(userID uint, limit int) ([]models.PointsTransaction, error) {
	return s.ledgerRepo.ListByUser(userID, limit)
}

func (s *ledgerService) AdjustBalance(userID uint, amount decimal.Decimal, reason string, adjustedBy uint) (*models.PointsTransaction, error) {
	if amount.IsZero() {
		return nil, apperrors.InvalidArgument("adjustment amount must not be zero")
	}
	if reason == "" {
		return nil, apperrors.InvalidArgument("adjustment reason is required")
	}

	if _, err := s.userRepo.GetByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user %d not found", userID)
		}
		return nil, err
	}

	flow := models.FlowCredit
	if amount.IsNegative() {
		flow = models.FlowDebit
	}

	entry := &models.PointsTransaction{
		UserID:      userID,
		Amount:      amount,
		Flow:        flow,
		Type:        models.TransactionManualAdjustment,
		ReferenceID: uuid.NewString(),
		Description: fmt.Sprintf("manual adjustment by user %d: %s", adjustedBy, reason),
	}
	if err := s.ledgerRepo.Record(entry); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.DeleteUserBalance(userID); err != nil {
			log.Printf("Failed to invalidate balance cache for user %d: %v", userID, err)
		}
	}
	return entry, nil
}
