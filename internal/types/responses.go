package types

import (
	"encoding/json"
	"time"
)

// UserSummary is how a task renders its creator and assignee.
type UserSummary struct {
	ID    uint   `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type UserResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type RecurringRuleResponse struct {
	ID        uint       `json:"id"`
	Frequency string     `json:"frequency"`
	Interval  int        `json:"interval"`
	EndDate   *time.Time `json:"endDate"`
}

type TaskResponse struct {
	ID               uint                   `json:"id"`
	Title            string                 `json:"title"`
	Description      string                 `json:"description"`
	DueDate          *time.Time             `json:"dueDate"`
	Priority         string                 `json:"priority"`
	Status           string                 `json:"status"`
	CreatedBy        UserSummary            `json:"createdBy"`
	AssignedTo       *UserSummary           `json:"assignedTo"`
	RecurringRule    *RecurringRuleResponse `json:"recurringRule"`
	NotificationSent bool                   `json:"notificationSent"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

type AuditLogResponse struct {
	ID         uint            `json:"id"`
	User       *UserResponse   `json:"user"`
	UserID     uint            `json:"userId"`
	Action     string          `json:"action"`
	TargetType string          `json:"targetType"`
	TargetID   uint            `json:"targetId"`
	Details    json.RawMessage `json:"details"`
	CreatedAt  time.Time       `json:"createdAt"`
}
