package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taskflow-dev/taskflow/internal/apperr"
	"github.com/taskflow-dev/taskflow/internal/audit"
	"github.com/taskflow-dev/taskflow/internal/models"
	"github.com/taskflow-dev/taskflow/internal/policy"
	"github.com/taskflow-dev/taskflow/internal/repository"
	"github.com/taskflow-dev/taskflow/internal/types"
)

// AuditRecorder appends audit entries without failing the caller.
type AuditRecorder interface {
	Record(ctx context.Context, actorID uint, action, targetType string, targetID uint, details any) bool
}

// Notifier pushes a real-time event to a user, best-effort.
type Notifier interface {
	Notify(ctx context.Context, userID uint, event string, payload any)
}

// Spawner creates the successor of a completed recurring task.
type Spawner interface {
	MaybeSpawnNext(ctx context.Context, task *models.Task) (*models.Task, error)
}

type Alerter interface {
	Alert(ctx context.Context, title string, fields map[string]string) error
}

type RuleInput struct {
	Frequency string     `json:"frequency"`
	Interval  int        `json:"interval"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

type CreateTaskInput struct {
	Title         string
	Description   string
	DueDate       *time.Time
	Priority      string
	Status        string
	AssignedTo    *uint
	RecurringRule *RuleInput
}

// TaskPatch carries only the fields present in an update request.
type TaskPatch struct {
	Title         types.Optional[string]
	Description   types.Optional[string]
	DueDate       types.Optional[time.Time]
	Priority      types.Optional[string]
	Status        types.Optional[string]
	AssignedTo    types.Optional[uint]
	RecurringRule types.Optional[RuleInput]
}

// TaskService runs task mutations: authorize, apply, then an ordered pipeline
// of side effects (notify, audit, recurrence). The side effects are independent
// of the mutation and of each other; a failing step is logged and the request
// still succeeds. A crash between steps leaves the later steps undone.
type TaskService struct {
	tasks    *repository.TaskRepository
	users    *repository.UserRepository
	audit    AuditRecorder
	notifier Notifier
	spawner  Spawner
	alerter  Alerter
}

func NewTaskService(tasks *repository.TaskRepository, users *repository.UserRepository, audit AuditRecorder, notifier Notifier, spawner Spawner) *TaskService {
	return &TaskService{tasks: tasks, users: users, audit: audit, notifier: notifier, spawner: spawner}
}

func (s *TaskService) WithAlerter(alerter Alerter) *TaskService {
	s.alerter = alerter
	return s
}

func taskLogger() *slog.Logger {
	return slog.Default().With("module", "services", "component", "tasks")
}

func (s *TaskService) Create(ctx context.Context, actor policy.Actor, input CreateTaskInput) (*models.Task, error) {
	if err := policy.Authorize(actor, policy.ActionCreate, nil); err != nil {
		return nil, err
	}

	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, apperr.Validation("Title is required.")
	}
	if input.Priority == "" {
		input.Priority = types.PriorityMedium
	}
	if input.Status == "" {
		input.Status = types.StatusTodo
	}
	if err := validateEnums(input.Priority, input.Status); err != nil {
		return nil, err
	}
	if input.AssignedTo != nil {
		if err := s.requireUser(ctx, *input.AssignedTo); err != nil {
			return nil, err
		}
	}
	// A rule without a frequency is ignored rather than rejected.
	var rule *models.RecurringRule
	if input.RecurringRule != nil && input.RecurringRule.Frequency != "" {
		r, err := buildRule(*input.RecurringRule)
		if err != nil {
			return nil, err
		}
		rule = r
	}

	if rule != nil {
		if err := s.tasks.CreateRule(ctx, rule); err != nil {
			return nil, err
		}
	}

	task := &models.Task{
		Title:        input.Title,
		Description:  input.Description,
		DueDate:      utc(input.DueDate),
		Priority:     input.Priority,
		Status:       input.Status,
		CreatedByID:  actor.ID,
		AssignedToID: input.AssignedTo,
	}
	if rule != nil {
		task.RecurringRuleID = &rule.ID
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	var steps []effect
	if task.AssignedToID != nil {
		steps = append(steps, s.notifyAssigned(*task.AssignedToID, task.ID,
			fmt.Sprintf("A new task %q has been assigned to you.", task.Title)))
	}
	steps = append(steps, s.record(actor.ID, audit.ActionCreate, task.ID, map[string]any{
		"title":         task.Title,
		"assignedTo":    task.AssignedToID,
		"recurringRule": rule,
	}))
	s.runEffects(ctx, "create", task.ID, steps)

	return s.reload(ctx, task), nil
}

func (s *TaskService) Get(ctx context.Context, id uint) (*models.Task, error) {
	return s.tasks.FindByID(ctx, id)
}

// List applies filter; assignedToMe restricts results to tasks assigned to the actor.
func (s *TaskService) List(ctx context.Context, actor policy.Actor, filter repository.TaskFilter, assignedToMe bool) ([]models.Task, error) {
	if assignedToMe {
		id := actor.ID
		filter.AssignedTo = &id
	}
	if filter.DueBefore != nil {
		filter.DueBefore = utc(filter.DueBefore)
	}
	return s.tasks.List(ctx, filter)
}

func (s *TaskService) Update(ctx context.Context, actor policy.Actor, id uint, patch TaskPatch) (*models.Task, error) {
	current, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionUpdate, current); err != nil {
		return nil, err
	}

	fields, details, rule, err := s.applyPatch(ctx, current, patch)
	if err != nil {
		return nil, err
	}

	if rule != nil {
		if err := s.tasks.CreateRule(ctx, rule); err != nil {
			return nil, err
		}
		fields["recurring_rule_id"] = rule.ID
		details["recurringRule"] = rule
	}

	completed := false
	if current.Status != types.StatusDone && fields["status"] == types.StatusDone {
		if completed, err = s.tasks.CompleteTask(ctx, id, fields); err != nil {
			return nil, err
		}
	}

	var updated *models.Task
	if completed {
		updated, err = s.tasks.FindByID(ctx, id)
	} else {
		// Also reached when a concurrent request completed the task first.
		updated, err = s.tasks.Update(ctx, id, fields)
	}
	if err != nil {
		return nil, err
	}

	var steps []effect
	if patch.AssignedTo.Valid && !current.IsAssignedTo(patch.AssignedTo.Value) {
		steps = append(steps, s.notifyAssigned(patch.AssignedTo.Value, updated.ID,
			fmt.Sprintf("A task %q has been assigned to you.", updated.Title)))
	}
	steps = append(steps, s.record(actor.ID, audit.ActionUpdate, updated.ID, details))
	// Only the request that moved the task into done spawns a successor.
	if completed && updated.RecurringRule != nil {
		steps = append(steps, effect{name: "recurrence", alert: true, run: func(ctx context.Context) error {
			next, err := s.spawner.MaybeSpawnNext(ctx, updated)
			if err != nil {
				return err
			}
			if next != nil {
				taskLogger().InfoContext(ctx, "recurrence successor created", "task_id", updated.ID, "successor_id", next.ID)
			}
			return nil
		}})
	}
	s.runEffects(ctx, "update", updated.ID, steps)

	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, actor policy.Actor, id uint) error {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(actor, policy.ActionDelete, task); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return err
	}

	s.runEffects(ctx, "delete", id, []effect{
		s.record(actor.ID, audit.ActionDelete, id, map[string]any{"title": task.Title}),
	})
	return nil
}

// applyPatch validates patch against current and returns the column updates,
// the audit details, and a new rule to create, if any.
func (s *TaskService) applyPatch(ctx context.Context, current *models.Task, patch TaskPatch) (map[string]interface{}, map[string]any, *models.RecurringRule, error) {
	fields := map[string]interface{}{}
	details := map[string]any{}

	if patch.Title.Set {
		title := strings.TrimSpace(patch.Title.Value)
		if !patch.Title.Valid || title == "" {
			return nil, nil, nil, apperr.Validation("Title is required.")
		}
		fields["title"] = title
		details["title"] = title
	}
	if patch.Description.Set {
		fields["description"] = patch.Description.Value
		details["description"] = patch.Description.Value
	}
	if patch.Priority.Set {
		if !types.ValidPriority(patch.Priority.Value) {
			return nil, nil, nil, apperr.Validation("Priority must be one of low, medium, high.")
		}
		fields["priority"] = patch.Priority.Value
		details["priority"] = patch.Priority.Value
	}
	if patch.Status.Set {
		if !types.ValidStatus(patch.Status.Value) {
			return nil, nil, nil, apperr.Validation("Status must be one of todo, in progress, done.")
		}
		fields["status"] = patch.Status.Value
		details["status"] = patch.Status.Value
	}
	if patch.DueDate.Set {
		due := utc(patch.DueDate.Ptr())
		fields["due_date"] = due
		details["dueDate"] = due
		if !sameTime(due, current.DueDate) {
			fields["notification_sent"] = false
		}
	}
	if patch.AssignedTo.Set {
		assignee := patch.AssignedTo.Ptr()
		if assignee != nil {
			if err := s.requireUser(ctx, *assignee); err != nil {
				return nil, nil, nil, err
			}
		}
		fields["assigned_to_id"] = assignee
		details["assignedTo"] = assignee
		if assignee == nil || !current.IsAssignedTo(*assignee) {
			fields["notification_sent"] = false
		}
	}

	var rule *models.RecurringRule
	if patch.RecurringRule.Set {
		if !patch.RecurringRule.Valid || patch.RecurringRule.Value.Frequency == "" {
			fields["recurring_rule_id"] = nil
			details["recurringRule"] = nil
		} else {
			r, err := buildRule(patch.RecurringRule.Value)
			if err != nil {
				return nil, nil, nil, err
			}
			rule = r
		}
	}

	return fields, details, rule, nil
}

func (s *TaskService) requireUser(ctx context.Context, id uint) error {
	if _, err := s.users.FindByID(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Validation("Assigned user does not exist.")
		}
		return err
	}
	return nil
}

func (s *TaskService) reload(ctx context.Context, task *models.Task) *models.Task {
	full, err := s.tasks.FindByID(ctx, task.ID)
	if err != nil {
		taskLogger().WarnContext(ctx, "reload after create failed", "task_id", task.ID, "error", err.Error())
		return task
	}
	return full
}

func validateEnums(priority, status string) error {
	if !types.ValidPriority(priority) {
		return apperr.Validation("Priority must be one of low, medium, high.")
	}
	if !types.ValidStatus(status) {
		return apperr.Validation("Status must be one of todo, in progress, done.")
	}
	return nil
}

func buildRule(in RuleInput) (*models.RecurringRule, error) {
	if !types.ValidFrequency(in.Frequency) {
		return nil, apperr.Validation("Recurring frequency must be one of daily, weekly, monthly.")
	}
	if in.Interval < 0 {
		return nil, apperr.Validation("Recurring interval must be a positive integer.")
	}
	if in.Interval == 0 {
		in.Interval = 1
	}
	return &models.RecurringRule{Frequency: in.Frequency, Interval: in.Interval, EndDate: utc(in.EndDate)}, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
