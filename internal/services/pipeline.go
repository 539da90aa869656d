package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/taskflow-dev/taskflow/internal/types"
)

var errAuditNotStored = errors.New("audit entry not stored")

// effect is one secondary step run after a task mutation has been applied.
type effect struct {
	name string
	// alert forwards a failure to the operator alerter; steps that alert on
	// their own leave it false.
	alert bool
	run   func(ctx context.Context) error
}

// runEffects executes steps in order. Failures are logged and never returned:
// the mutation that triggered them has already been committed.
func (s *TaskService) runEffects(ctx context.Context, op string, taskID uint, steps []effect) {
	for _, step := range steps {
		err := step.run(ctx)
		if err == nil {
			continue
		}

		taskLogger().ErrorContext(ctx, "task side effect failed",
			"operation", op,
			"step", step.name,
			"task_id", taskID,
			"error", err.Error(),
		)

		if step.alert && s.alerter != nil {
			alertErr := s.alerter.Alert(ctx, "Task side effect failed", map[string]string{
				"Operation": op,
				"Step":      step.name,
				"Task":      strconv.FormatUint(uint64(taskID), 10),
				"Error":     err.Error(),
			})
			if alertErr != nil {
				taskLogger().ErrorContext(ctx, "operator alert failed", "error", alertErr.Error())
			}
		}
	}
}

func (s *TaskService) notifyAssigned(userID, taskID uint, message string) effect {
	return effect{name: "notify", run: func(ctx context.Context) error {
		s.notifier.Notify(ctx, userID, types.EventTaskAssigned, map[string]any{
			"message": message,
			"taskId":  taskID,
		})
		return nil
	}}
}

func (s *TaskService) record(actorID uint, action string, taskID uint, details any) effect {
	return effect{name: "audit", run: func(ctx context.Context) error {
		if !s.audit.Record(ctx, actorID, action, types.TargetTypeTask, taskID, details) {
			return errAuditNotStored
		}
		return nil
	}}
}
