package models

import (
	"time"
)

// CompletionStatus is the state-machine field of a TaskCompletion.
//
// PENDING_APPROVAL -> APPROVED | REJECTED (reviewer action)
// COMPLETED is the terminal state reached directly on submission when the
// task type does not require approval.
type CompletionStatus string

const (
	CompletionPendingApproval CompletionStatus = "PENDING_APPROVAL"
	CompletionApproved        CompletionStatus = "APPROVED"
	CompletionRejected        CompletionStatus = "REJECTED"
	CompletionCompleted       CompletionStatus = "COMPLETED"
)

// IsTerminal reports whether no further workflow transition is expected.
func (s CompletionStatus) IsTerminal() bool {
	return s == CompletionApproved || s == CompletionRejected || s == CompletionCompleted
}

// IsTerminalPositive reports whether the completion counts as successfully
// done for bonus purposes. APPROVED and COMPLETED are treated as one
// "approved/terminal-positive" state.
func (s CompletionStatus) IsTerminalPositive() bool {
	return s == CompletionApproved || s == CompletionCompleted
}

// TaskCompletion is one attempt by one user to complete one task.
// Records are immutable once terminal; re-attempts on repeatable tasks
// create a new row instead of mutating the old one.
type TaskCompletion struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	TaskID uint `json:"task_id" gorm:"not null;index:idx_completions_task_user"`
	UserID uint `json:"user_id" gorm:"not null;index:idx_completions_task_user"`
	// TaskRepeatable mirrors the task's flag at submission time so the
	// live-completion unique index can exempt repeatable tasks.
	TaskRepeatable bool             `json:"-" gorm:"not null;default:false"`
	Status         CompletionStatus `json:"status" gorm:"type:varchar(32);not null;default:'PENDING_APPROVAL';index"`
	CompletedAt    *time.Time       `json:"completed_at"`
	UserNotes      string           `json:"user_notes"`
	ReviewNotes    string           `json:"review_notes"`
	ReviewedBy     *uint            `json:"reviewed_by"`
	ReviewedAt     *time.Time       `json:"reviewed_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`

	Task *Task `json:"task,omitempty" gorm:"foreignKey:TaskID"`
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
