package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionFlow string

const (
	FlowCredit TransactionFlow = "credit"
	FlowDebit  TransactionFlow = "debit"
)

type TransactionType string

const (
	TransactionTaskReward       TransactionType = "task_reward"
	TransactionTaskPenalty      TransactionType = "task_penalty"
	TransactionManualAdjustment TransactionType = "manual_adjustment"
)

// PointsTransaction is one ledger entry moving points into or out of a
// user's balance. Entries are append-only; corrections are new entries.
type PointsTransaction struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	UserID       uint            `json:"user_id" gorm:"not null;index"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Flow         TransactionFlow `json:"flow" gorm:"type:varchar(16);not null"`
	Type         TransactionType `json:"type" gorm:"type:varchar(32);not null"`
	ReferenceID  string          `json:"reference_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	RuleID       *uint           `json:"rule_id" gorm:"index"`
	CompletionID *uint           `json:"completion_id" gorm:"index"`
	Description  string          `json:"description"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Notification struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	UserID    uint       `json:"user_id" gorm:"not null;index"`
	Title     string     `json:"title" gorm:"not null"`
	Message   string     `json:"message"`
	Channel   string     `json:"channel" gorm:"default:'webhook'"`
	Sent      bool       `json:"sent" gorm:"default:false"`
	SentAt    *time.Time `json:"sent_at"`
	CreatedAt time.Time  `json:"created_at"`
}
