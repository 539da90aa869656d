// Package audit appends a record of every task mutation.
//
// Recording is best-effort. A failed write never reaches the caller and never
// rolls back the mutation it describes; it is logged and, when an alerter is
// configured, reported to operators.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/taskflow-dev/taskflow/internal/models"
	"gorm.io/datatypes"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Store persists audit entries.
type Store interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

// Sink receives a copy of every stored entry, e.g. a Kafka topic.
type Sink interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// Alerter surfaces failures to operators.
type Alerter interface {
	Alert(ctx context.Context, title string, fields map[string]string) error
}

// sinkTimeout bounds one publish. Publishing runs after Record returns, so the
// request that caused the entry never waits on the sink.
const sinkTimeout = 10 * time.Second

type Recorder struct {
	store   Store
	sink    Sink
	alerter Alerter

	pending sync.WaitGroup
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) WithSink(sink Sink) *Recorder {
	r.sink = sink
	return r
}

func (r *Recorder) WithAlerter(alerter Alerter) *Recorder {
	r.alerter = alerter
	return r
}

func logger() *slog.Logger {
	return slog.Default().With("module", "audit")
}

type event struct {
	ID         uint            `json:"id"`
	UserID     uint            `json:"userId"`
	Action     string          `json:"action"`
	TargetType string          `json:"targetType"`
	TargetID   uint            `json:"targetId"`
	Details    json.RawMessage `json:"details"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Record appends one entry. It reports whether the entry was stored, for
// callers that want to log it; it never returns an error.
func (r *Recorder) Record(ctx context.Context, actorID uint, action, targetType string, targetID uint, details any) bool {
	raw, err := json.Marshal(details)
	if err != nil {
		r.fail(ctx, "marshal", actorID, action, targetType, targetID, err)
		raw = []byte("null")
	}

	entry := &models.AuditLog{
		UserID:     actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    datatypes.JSON(raw),
	}
	if err := r.store.Create(ctx, entry); err != nil {
		r.fail(ctx, "store", actorID, action, targetType, targetID, err)
		return false
	}

	if r.sink != nil {
		payload, _ := json.Marshal(event{
			ID:         entry.ID,
			UserID:     entry.UserID,
			Action:     entry.Action,
			TargetType: entry.TargetType,
			TargetID:   entry.TargetID,
			Details:    raw,
			CreatedAt:  entry.CreatedAt,
		})
		key := targetType + ":" + strconv.FormatUint(uint64(targetID), 10)
		r.publish(ctx, entry.ID, key, payload)
	}

	return true
}

// publish hands payload to the sink in the background. The request context is
// detached so a finished request does not cancel the publish.
func (r *Recorder) publish(ctx context.Context, auditID uint, key string, payload []byte) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		defer cancel()

		if err := r.sink.Publish(pubCtx, key, payload); err != nil {
			logger().WarnContext(pubCtx, "audit sink publish failed",
				"audit_id", auditID, "key", key, "error", err.Error())
		}
	}()
}

// Wait blocks until every background publish has finished. Call it before
// closing the sink.
func (r *Recorder) Wait() {
	r.pending.Wait()
}

func (r *Recorder) fail(ctx context.Context, stage string, actorID uint, action, targetType string, targetID uint, err error) {
	logger().ErrorContext(ctx, "audit write failed",
		"stage", stage,
		"user_id", actorID,
		"action", action,
		"target_type", targetType,
		"target_id", targetID,
		"error", err.Error(),
	)

	if r.alerter == nil {
		return
	}
	alertErr := r.alerter.Alert(ctx, "Audit write failed", map[string]string{
		"Stage":  stage,
		"Actor":  strconv.FormatUint(uint64(actorID), 10),
		"Action": action,
		"Target": fmt.Sprintf("%s %d", targetType, targetID),
		"Error":  err.Error(),
	})
	if alertErr != nil {
		logger().ErrorContext(ctx, "operator alert failed", "error", alertErr.Error())
	}
}
