package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskflow-dev/taskflow/internal/apperr"
	"github.com/taskflow-dev/taskflow/internal/models"
	"github.com/taskflow-dev/taskflow/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskFilter narrows List. Zero fields are ignored.
type TaskFilter struct {
	Status     string
	Priority   string
	DueBefore  *time.Time // dueDate <= DueBefore
	Search     string     // case-insensitive substring of title or description
	AssignedTo *uint
}

// UserCount is one row of the completed-per-user aggregate.
type UserCount struct {
	UserID uint   `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Count  int64  `json:"count"`
}

// TaskRepository handles CRUD, filtered queries and aggregates for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// summary limits the joined user rows to what the task views display.
func summary(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "email")
}

func (r *TaskRepository) withRefs(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("CreatedBy", summary).
		Preload("AssignedTo", summary).
		Preload("RecurringRule")
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error; err != nil {
		return apperr.Internal(fmt.Errorf("create task: %w", err))
	}
	return nil
}

func (r *TaskRepository) CreateRule(ctx context.Context, rule *models.RecurringRule) error {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return apperr.Internal(fmt.Errorf("create recurring rule: %w", err))
	}
	return nil
}

// FindByID returns the task with creator, assignee and rule resolved.
func (r *TaskRepository) FindByID(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	err := r.withRefs(ctx).First(&task, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Task not found.")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("find task %d: %w", id, err))
	}
	return &task, nil
}

func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	q := r.withRefs(ctx)

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", filter.Priority)
	}
	if filter.DueBefore != nil {
		q = q.Where("due_date <= ?", *filter.DueBefore)
	}
	if filter.Search != "" {
		cond, pattern := r.searchCondition(filter.Search)
		q = q.Where(cond, pattern, pattern)
	}
	if filter.AssignedTo != nil {
		q = q.Where("assigned_to_id = ?", *filter.AssignedTo)
	}

	var tasks []models.Task
	if err := q.Order("created_at DESC").Order("id DESC").Find(&tasks).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("list tasks: %w", err))
	}
	return tasks, nil
}

// Update writes only the given columns and returns the refreshed task.
// Concurrent updates to different columns both land; the same column is last-write-wins.
func (r *TaskRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) (*models.Task, error) {
	if len(fields) > 0 {
		res := r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, apperr.Internal(fmt.Errorf("update task %d: %w", id, res.Error))
		}
		if res.RowsAffected == 0 {
			return nil, apperr.NotFound("Task not found.")
		}
	}
	return r.FindByID(ctx, id)
}

// CompleteTask applies fields, which must set status to done, only while the
// task is not done yet. It reports whether this call made the transition;
// of two racing completions exactly one wins.
func (r *TaskRepository) CompleteTask(ctx context.Context, id uint, fields map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status <> ?", id, types.StatusDone).
		Updates(fields)
	if res.Error != nil {
		return false, apperr.Internal(fmt.Errorf("complete task %d: %w", id, res.Error))
	}
	return res.RowsAffected == 1, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Task{}, id)
	if res.Error != nil {
		return apperr.Internal(fmt.Errorf("delete task %d: %w", id, res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Task not found.")
	}
	return nil
}

// CompletedPerUser counts done tasks grouped by creator.
func (r *TaskRepository) CompletedPerUser(ctx context.Context) ([]UserCount, error) {
	var rows []UserCount
	err := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Select("tasks.created_by_id AS user_id, users.name AS name, users.email AS email, COUNT(*) AS count").
		Joins("LEFT JOIN users ON users.id = tasks.created_by_id").
		Where("tasks.status = ?", types.StatusDone).
		Group("tasks.created_by_id, users.name, users.email").
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("completed per user: %w", err))
	}
	return rows, nil
}

// CountOverdue counts tasks not done whose due date is before now.
func (r *TaskRepository) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("status <> ? AND due_date IS NOT NULL AND due_date < ?", types.StatusDone, now).
		Count(&count).Error
	if err != nil {
		return 0, apperr.Internal(fmt.Errorf("count overdue: %w", err))
	}
	return count, nil
}

// CompletedTimestamps returns the last-update time of every done task.
func (r *TaskRepository) CompletedTimestamps(ctx context.Context) ([]time.Time, error) {
	var stamps []time.Time
	err := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("status = ?", types.StatusDone).
		Pluck("updated_at", &stamps).Error
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("completed timestamps: %w", err))
	}
	return stamps, nil
}

// DueSoonUnnotified finds open, assigned tasks due within window that have not had a reminder.
func (r *TaskRepository) DueSoonUnnotified(ctx context.Context, now time.Time, window time.Duration) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).
		Where("status <> ?", types.StatusDone).
		Where("notification_sent = ?", false).
		Where("assigned_to_id IS NOT NULL").
		Where("due_date IS NOT NULL AND due_date <= ?", now.Add(window)).
		Order("due_date").
		Find(&tasks).Error
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("due soon tasks: %w", err))
	}
	return tasks, nil
}

func (r *TaskRepository) MarkNotificationSent(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id IN ?", ids).
		UpdateColumn("notification_sent", true).Error
	if err != nil {
		return apperr.Internal(fmt.Errorf("mark notification sent: %w", err))
	}
	return nil
}

// searchCondition matches term anywhere in title or description, ignoring
// case. Postgres folds every letter. SQLite's LOWER folds ASCII only, so the
// term is folded the same way there: "ÉCLAIR" finds "Éclair" but "éclair" does not.
func (r *TaskRepository) searchCondition(term string) (string, string) {
	if r.db.Dialector.Name() == "postgres" {
		return `(title ILIKE ? ESCAPE '\' OR description ILIKE ? ESCAPE '\')`, "%" + escapeLike(term) + "%"
	}
	return `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, "%" + escapeLike(asciiLower(term)) + "%"
}

func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
