// Package scheduler runs the periodic due-soon reminder job.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/taskflow-dev/taskflow/internal/models"
	"github.com/taskflow-dev/taskflow/internal/types"
)

// ReminderStore is the slice of the task repository the job needs.
type ReminderStore interface {
	DueSoonUnnotified(ctx context.Context, now time.Time, window time.Duration) ([]models.Task, error)
	MarkNotificationSent(ctx context.Context, ids []uint) error
}

type Notifier interface {
	Notify(ctx context.Context, userID uint, event string, payload any)
}

type Scheduler struct {
	cron     *cron.Cron
	store    ReminderStore
	notifier Notifier
	interval time.Duration
	window   time.Duration
	now      func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	lastRun time.Time
	lastN   int
}

func NewScheduler(store ReminderStore, notifier Notifier, interval, window time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Scheduler{
		// SkipIfStillRunning keeps a slow run from overlapping the next tick.
		cron:     cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		store:    store,
		notifier: notifier,
		interval: interval,
		window:   window,
		now:      time.Now,
	}
}

func logger() *slog.Logger {
	return slog.Default().With("module", "scheduler")
}

// Start registers the reminder job and begins running it. The job stops when
// parent is cancelled or Stop is called.
func (s *Scheduler) Start(parent context.Context) error {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(parent)
	s.mu.Unlock()

	seconds := int(s.interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %ds", seconds), func() {
		if _, err := s.RunOnce(s.ctx); err != nil {
			logger().ErrorContext(s.ctx, "reminder run failed", "error", err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reminder job: %w", err)
	}

	s.cron.Start()
	logger().Info("scheduler started", "interval", s.interval.String(), "window", s.window.String())
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	logger().Info("stopping scheduler")

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	logger().Info("scheduler stopped")
}

// RunOnce sends a taskDueSoon event for every open, assigned task due within
// the window that has not been reminded yet, then marks those tasks. It
// returns how many reminders were sent.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	now := s.now().UTC()
	tasks, err := s.store.DueSoonUnnotified(ctx, now, s.window)
	if err != nil {
		return 0, err
	}

	ids := make([]uint, 0, len(tasks))
	for _, task := range tasks {
		if task.AssignedToID == nil || task.DueDate == nil {
			continue
		}

		s.notifier.Notify(ctx, *task.AssignedToID, types.EventTaskDueSoon, map[string]any{
			"message": dueSoonMessage(task, now),
			"taskId":  task.ID,
			"dueDate": task.DueDate,
		})
		ids = append(ids, task.ID)
	}

	if err := s.store.MarkNotificationSent(ctx, ids); err != nil {
		return 0, fmt.Errorf("mark reminders sent: %w", err)
	}

	s.mu.Lock()
	s.lastRun = now
	s.lastN = len(ids)
	s.mu.Unlock()

	if len(ids) > 0 {
		logger().InfoContext(ctx, "due-soon reminders sent", "count", len(ids))
	}
	return len(ids), nil
}

func dueSoonMessage(task models.Task, now time.Time) string {
	if task.DueDate.Before(now) {
		return fmt.Sprintf("Task %q is overdue.", task.Title)
	}
	return fmt.Sprintf("Task %q is due %s.", task.Title, task.DueDate.UTC().Format(time.RFC1123))
}

// GetStatus returns current scheduler status
func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]interface{}{
		"running":        s.ctx != nil && s.ctx.Err() == nil,
		"last_run":       s.lastRun,
		"last_reminders": s.lastN,
	}
}
