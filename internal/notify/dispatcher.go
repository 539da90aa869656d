package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Envelope is one notification addressed to a user.
type Envelope struct {
	UserID  uint   `json:"userId"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Broker fans envelopes out to every running instance. Each instance delivers
// the ones whose user is connected locally.
type Broker interface {
	Publish(ctx context.Context, env Envelope) error
}

// Subscriber is a Broker that also feeds envelopes published by any instance
// back into d.DeliverLocal until ctx is done.
type Subscriber interface {
	Broker
	Run(ctx context.Context, d *Dispatcher) error
}

// Dispatcher delivers at most once: offline users are skipped, failed sends
// are not retried, and nothing is persisted.
type Dispatcher struct {
	registry *Registry

	mu     sync.RWMutex
	broker Broker
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// WithBroker routes Notify through broker instead of delivering in-process.
// A nil broker restores in-process delivery.
func (d *Dispatcher) WithBroker(broker Broker) *Dispatcher {
	d.mu.Lock()
	d.broker = broker
	d.mu.Unlock()
	return d
}

func (d *Dispatcher) currentBroker() Broker {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.broker
}

// Serve runs sub's subscriber loop. When the loop ends, for any reason, sub is
// detached and Notify falls back to in-process delivery.
func (d *Dispatcher) Serve(ctx context.Context, sub Subscriber) error {
	err := sub.Run(ctx, d)

	d.mu.Lock()
	if d.broker == Broker(sub) {
		d.broker = nil
	}
	d.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		logger().WarnContext(ctx, "broker subscriber failed, delivering in-process", "error", err.Error())
	}
	return err
}

func logger() *slog.Logger {
	return slog.Default().With("module", "notify")
}

// Notify never fails; delivery problems are logged.
func (d *Dispatcher) Notify(ctx context.Context, userID uint, event string, payload any) {
	if broker := d.currentBroker(); broker != nil {
		err := broker.Publish(ctx, Envelope{UserID: userID, Event: event, Payload: payload})
		if err == nil {
			return
		}
		logger().WarnContext(ctx, "broker publish failed, delivering locally",
			"user_id", userID, "event", event, "error", err.Error())
	}
	d.DeliverLocal(ctx, Envelope{UserID: userID, Event: event, Payload: payload})
}

// DeliverLocal sends env to the user's channel on this instance, if any.
func (d *Dispatcher) DeliverLocal(ctx context.Context, env Envelope) {
	ch, ok := d.registry.Lookup(env.UserID)
	if !ok {
		logger().DebugContext(ctx, "user offline, notification dropped", "user_id", env.UserID, "event", env.Event)
		return
	}

	if err := ch.Send(env.Event, env.Payload); err != nil {
		logger().WarnContext(ctx, "notification send failed",
			"user_id", env.UserID, "event", env.Event, "channel_id", ch.ID(), "error", err.Error())
		d.registry.UnregisterByChannel(ch.ID())
	}
}
