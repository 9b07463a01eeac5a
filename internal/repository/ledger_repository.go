package repository

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kudos/internal/models"
)

type LedgerRepository interface {
	// Record appends a ledger entry and moves the user's balance by the
	// entry's signed amount in the same statement scope. Callers that
	// need atomicity with other writes use Atomic.
	Record(transaction *models.PointsTransaction) error
	ListByUser(userID uint, limit int) ([]models.PointsTransaction, error)
	GetBalance(userID uint) (decimal.Decimal, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Record(transaction *models.PointsTransaction) error {
	if err := r.db.Create(transaction).Error; err != nil {
		return err
	}
	return r.db.Model(&models.User{}).
		Where("id = ?", transaction.UserID).
		Update("points_balance", gorm.Expr("points_balance + ?", transaction.Amount)).Error
}

func (r *ledgerRepository) ListByUser(userID uint, limit int) ([]models.PointsTransaction, error) {
	query := r.db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var transactions []models.PointsTransaction
	err := query.Find(&transactions).Error
	return transactions, err
}

func (r *ledgerRepository) GetBalance(userID uint) (decimal.Decimal, error) {
	var user models.User
	if err := r.db.Select("points_balance").First(&user, userID).Error; err != nil {
		return decimal.Zero, err
	}
	return user.PointsBalance, nil
}

// Atomic runs completion and ledger writes inside one database
// transaction so a review transition and the award it triggers commit or
// roll back together.
type Atomic interface {
	Transaction(fn func(completions CompletionRepository, ledger LedgerRepository) error) error
}

type atomic struct {
	db *gorm.DB
}

func NewAtomic(db *gorm.DB) Atomic {
	return &atomic{db: db}
}

func (a *atomic) Transaction(fn func(completions CompletionRepository, ledger LedgerRepository) error) error {
	return a.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewCompletionRepository(tx), NewLedgerRepository(tx))
	})
}
