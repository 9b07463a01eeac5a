package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type User struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	Username      string          `json:"username" gorm:"unique;not null"`
	Email         string          `json:"email" gorm:"unique;not null"`
	PasswordHash  string          `json:"-" gorm:"not null"`
	Role          string          `json:"role" gorm:"default:'user'"` // super_admin, admin, user
	PointsBalance decimal.Decimal `json:"points_balance" gorm:"type:decimal(12,2);default:0"`
	IsActive      bool            `json:"is_active" gorm:"default:true"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `json:"deleted_at" gorm:"index"`
}

type UserRole string

const (
	SuperAdmin UserRole = "super_admin"
	Admin      UserRole = "admin"
	Member     UserRole = "user"
)
