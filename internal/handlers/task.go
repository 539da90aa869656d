package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskflow-dev/taskflow/internal/apperr"
	"github.com/taskflow-dev/taskflow/internal/repository"
	"github.com/taskflow-dev/taskflow/internal/services"
	"github.com/taskflow-dev/taskflow/internal/types"
	"github.com/taskflow-dev/taskflow/internal/utils"
)

type RecurringRuleRequest struct {
	Frequency string      `json:"frequency"`
	Interval  int         `json:"interval"`
	EndDate   *types.Date `json:"endDate"`
}

type CreateTaskRequest struct {
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	DueDate       *types.Date           `json:"dueDate"`
	Priority      string                `json:"priority"`
	Status        string                `json:"status"`
	AssignedTo    *uint                 `json:"assignedTo"`
	RecurringRule *RecurringRuleRequest `json:"recurringRule"`
}

// UpdateTaskRequest tells absent fields apart from explicit nulls so a PUT
// only touches what the client sent.
type UpdateTaskRequest struct {
	Title         types.Optional[string]               `json:"title"`
	Description   types.Optional[string]               `json:"description"`
	DueDate       types.Optional[types.Date]           `json:"dueDate"`
	Priority      types.Optional[string]               `json:"priority"`
	Status        types.Optional[string]               `json:"status"`
	AssignedTo    types.Optional[uint]                 `json:"assignedTo"`
	RecurringRule types.Optional[RecurringRuleRequest] `json:"recurringRule"`
}

func (r *RecurringRuleRequest) toInput() *services.RuleInput {
	if r == nil {
		return nil
	}
	return &services.RuleInput{Frequency: r.Frequency, Interval: r.Interval, EndDate: r.EndDate.Ptr()}
}

func (r UpdateTaskRequest) toPatch() services.TaskPatch {
	patch := services.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Status:      r.Status,
		AssignedTo:  r.AssignedTo,
	}

	if r.DueDate.Set {
		if due := r.DueDate.Value.Ptr(); r.DueDate.Valid && due != nil {
			patch.DueDate = types.Some(*due)
		} else {
			patch.DueDate = types.Null[time.Time]()
		}
	}

	if r.RecurringRule.Set {
		if r.RecurringRule.Valid {
			patch.RecurringRule = types.Some(*r.RecurringRule.Value.toInput())
		} else {
			patch.RecurringRule = types.Null[services.RuleInput]()
		}
	}

	return patch
}

func (h *Handler) CreateTask(ctx *gin.Context) {
	actor, err := utils.GetActor(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body CreateTaskRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondError(ctx, apperr.Validation("Invalid request"))
		return
	}

	task, err := h.tasks.Create(ctx.Request.Context(), actor, services.CreateTaskInput{
		Title:         body.Title,
		Description:   body.Description,
		DueDate:       body.DueDate.Ptr(),
		Priority:      body.Priority,
		Status:        body.Status,
		AssignedTo:    body.AssignedTo,
		RecurringRule: body.RecurringRule.toInput(),
	})

	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, toTaskResponse(task))
}

func (h *Handler) ListTasks(ctx *gin.Context) {
	actor, err := utils.GetActor(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	filter := repository.TaskFilter{
		Status:   ctx.Query("status"),
		Priority: ctx.Query("priority"),
		Search:   strings.TrimSpace(ctx.Query("search")),
	}

	if raw := ctx.Query("dueDate"); raw != "" {
		due, err := types.ParseDate(raw)

		if err != nil {
			respondError(ctx, apperr.Validation(err.Error()))
			return
		}

		filter.DueBefore = &due
	}

	tasks, err := h.tasks.List(ctx.Request.Context(), actor, filter, ctx.Query("assigned") == "me")

	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, toTaskResponses(tasks))
}

func (h *Handler) GetTask(ctx *gin.Context) {
	taskID, err := utils.GetTaskID(ctx)

	if err != nil {
		respondError(ctx, apperr.Validation(err.Error()))
		return
	}

	task, err := h.tasks.Get(ctx.Request.Context(), taskID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, toTaskResponse(task))
}

func (h *Handler) UpdateTask(ctx *gin.Context) {
	actor, err := utils.GetActor(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	taskID, err := utils.GetTaskID(ctx)

	if err != nil {
		respondError(ctx, apperr.Validation(err.Error()))
		return
	}

	var body UpdateTaskRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondError(ctx, apperr.Validation("Invalid request"))
		return
	}

	task, err := h.tasks.Update(ctx.Request.Context(), actor, taskID, body.toPatch())

	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, toTaskResponse(task))
}

func (h *Handler) DeleteTask(ctx *gin.Context) {
	actor, err := utils.GetActor(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	taskID, err := utils.GetTaskID(ctx)

	if err != nil {
		respondError(ctx, apperr.Validation(err.Error()))
		return
	}

	if err := h.tasks.Delete(ctx.Request.Context(), actor, taskID); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Task deleted."})
}
