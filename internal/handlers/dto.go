package handlers

import (
	"encoding/json"

	"github.com/taskflow-dev/taskflow/internal/models"
	"github.com/taskflow-dev/taskflow/internal/types"
)

func toUserResponse(u *models.User) types.UserResponse {
	return types.UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func toTaskResponse(t *models.Task) types.TaskResponse {
	resp := types.TaskResponse{
		ID:               t.ID,
		Title:            t.Title,
		Description:      t.Description,
		DueDate:          t.DueDate,
		Priority:         t.Priority,
		Status:           t.Status,
		CreatedBy:        types.UserSummary{ID: t.CreatedByID},
		NotificationSent: t.NotificationSent,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}

	if t.CreatedBy != nil {
		resp.CreatedBy = summarize(t.CreatedBy)
	}
	if t.AssignedToID != nil {
		assignee := types.UserSummary{ID: *t.AssignedToID}
		if t.AssignedTo != nil {
			assignee = summarize(t.AssignedTo)
		}
		resp.AssignedTo = &assignee
	}
	if t.RecurringRule != nil {
		resp.RecurringRule = &types.RecurringRuleResponse{
			ID:        t.RecurringRule.ID,
			Frequency: t.RecurringRule.Frequency,
			Interval:  t.RecurringRule.Interval,
			EndDate:   t.RecurringRule.EndDate,
		}
	}

	return resp
}

func toTaskResponses(tasks []models.Task) []types.TaskResponse {
	out := make([]types.TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResponse(&tasks[i]))
	}
	return out
}

func summarize(u *models.User) types.UserSummary {
	return types.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

func toAuditLogResponse(l *models.AuditLog) types.AuditLogResponse {
	resp := types.AuditLogResponse{
		ID:         l.ID,
		UserID:     l.UserID,
		Action:     l.Action,
		TargetType: l.TargetType,
		TargetID:   l.TargetID,
		Details:    json.RawMessage(l.Details),
		CreatedAt:  l.CreatedAt,
	}
	if len(resp.Details) == 0 {
		resp.Details = json.RawMessage("null")
	}
	if l.User != nil {
		user := toUserResponse(l.User)
		resp.User = &user
	}
	return resp
}
