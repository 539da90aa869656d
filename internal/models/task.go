package models

import (
	"time"

	"gorm.io/gorm"
)

type Task struct {
	gorm.Model

	Title            string `gorm:"not null"`
	Description      string
	DueDate          *time.Time `gorm:"index"`
	Priority         string     `gorm:"not null;default:medium"`
	Status           string     `gorm:"not null;default:todo;index"`
	CreatedByID      uint       `gorm:"not null;index"`
	AssignedToID     *uint      `gorm:"index"`
	RecurringRuleID  *uint
	NotificationSent bool `gorm:"not null;default:false"`

	// Relationships
	CreatedBy     *User          `gorm:"foreignKey:CreatedByID"`
	AssignedTo    *User          `gorm:"foreignKey:AssignedToID"`
	RecurringRule *RecurringRule `gorm:"foreignKey:RecurringRuleID"`
}

// IsAssignedTo reports whether userID is the task's current assignee.
func (t *Task) IsAssignedTo(userID uint) bool {
	return t.AssignedToID != nil && *t.AssignedToID == userID
}
