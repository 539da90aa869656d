package recurrence

import (
	"context"
	"time"

	"github.com/taskflow-dev/taskflow/internal/models"
	"github.com/taskflow-dev/taskflow/internal/types"
)

// TaskCreator persists a new task.
type TaskCreator interface {
	Create(ctx context.Context, task *models.Task) error
}

// NextDueDate returns the occurrence after current. Monthly steps keep the day of
// month, clamped to the last day of the target month (Jan 31 -> Feb 29 in 2024).
func NextDueDate(current time.Time, rule models.RecurringRule) time.Time {
	interval := rule.Interval
	if interval <= 0 {
		interval = 1
	}

	switch rule.Frequency {
	case types.FrequencyDaily:
		return current.AddDate(0, 0, interval)
	case types.FrequencyWeekly:
		return current.AddDate(0, 0, 7*interval)
	case types.FrequencyMonthly:
		return addMonthsClamped(current, interval)
	}
	return current
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	// Day 1 never overflows, so this lands in the target month.
	first := time.Date(year, month+time.Month(months), 1, hour, min, sec, t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// Engine materializes recurrence successors.
type Engine struct {
	tasks TaskCreator
	now   func() time.Time
}

func NewEngine(tasks TaskCreator) *Engine {
	return &Engine{tasks: tasks, now: time.Now}
}

// MaybeSpawnNext creates the successor of a just-completed task. It returns nil
// without error when the task has no rule or the rule's end date has passed.
// The successor's due date is computed from the completed task's due date, not
// from the completion time, so late completions drift from the original cadence.
func (e *Engine) MaybeSpawnNext(ctx context.Context, task *models.Task) (*models.Task, error) {
	if task.RecurringRuleID == nil || task.RecurringRule == nil {
		return nil, nil
	}
	rule := *task.RecurringRule

	anchor := e.now().UTC()
	if task.DueDate != nil {
		anchor = *task.DueDate
	}

	next := NextDueDate(anchor, rule)
	if rule.EndDate != nil && next.After(*rule.EndDate) {
		return nil, nil
	}

	successor := &models.Task{
		Title:           task.Title,
		Description:     task.Description,
		DueDate:         &next,
		Priority:        task.Priority,
		Status:          types.StatusTodo,
		CreatedByID:     task.CreatedByID,
		AssignedToID:    task.AssignedToID,
		RecurringRuleID: task.RecurringRuleID,
	}
	if err := e.tasks.Create(ctx, successor); err != nil {
		return nil, err
	}
	return successor, nil
}
