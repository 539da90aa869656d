package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

type fakeChannel struct {
	id   string
	err  error
	mu   sync.Mutex
	sent []string
}

func (f *fakeChannel) ID() string { return f.id }

func (f *fakeChannel) Send(event string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, event)
	return nil
}

func (f *fakeChannel) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeBroker struct {
	err  error
	sent []Envelope
}

func (b *fakeBroker) Publish(_ context.Context, env Envelope) error {
	if b.err != nil {
		return b.err
	}
	b.sent = append(b.sent, env)
	return nil
}

func TestRegistryReplaceAndUnregister(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first := &fakeChannel{id: "a"}
	second := &fakeChannel{id: "b"}

	r.Register(1, first)
	r.Register(1, second)

	// A late disconnect of the replaced channel must not evict the new one.
	if removed := r.UnregisterByChannel("a"); len(removed) != 0 {
		t.Fatalf("expected nothing removed, got %v", removed)
	}
	ch, ok := r.Lookup(1)
	if !ok || ch.ID() != "b" {
		t.Fatalf("expected channel b, got %v %v", ch, ok)
	}

	if removed := r.UnregisterByChannel("b"); len(removed) != 1 || removed[0] != 1 {
		t.Fatalf("expected user 1 removed, got %v", removed)
	}
	if r.Count() != 0 {
		t.Fatalf("registry should be empty")
	}
}

func TestRegistryUnregisterRemovesAllUsersOnChannel(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	shared := &fakeChannel{id: "shared"}
	r.Register(1, shared)
	r.Register(2, shared)
	r.Register(3, &fakeChannel{id: "other"})

	removed := r.UnregisterByChannel("shared")
	if len(removed) != 2 {
		t.Fatalf("expected 2 users removed, got %v", removed)
	}
	if r.Count() != 1 {
		t.Fatalf("expected 1 user left, got %d", r.Count())
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	d := NewDispatcher(r)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(3)
		id := fmt.Sprintf("ch-%d", i)
		user := uint(i % 5)
		go func() {
			defer wg.Done()
			r.Register(user, &fakeChannel{id: id})
		}()
		go func() {
			defer wg.Done()
			r.UnregisterByChannel(id)
		}()
		go func() {
			defer wg.Done()
			d.Notify(context.Background(), user, "ping", nil)
		}()
	}
	wg.Wait()

	if r.Count() > 5 {
		t.Fatalf("at most one channel per user, got %d", r.Count())
	}
}

func TestDispatcherNotify(t *testing.T) {
	t.Parallel()

	t.Run("offline user is a silent no-op", func(t *testing.T) {
		t.Parallel()
		d := NewDispatcher(NewRegistry())
		d.Notify(context.Background(), 42, "taskAssigned", map[string]any{"taskId": 1})
	})

	t.Run("online user receives event", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()
		ch := &fakeChannel{id: "x"}
		r.Register(7, ch)
		NewDispatcher(r).Notify(context.Background(), 7, "taskAssigned", nil)
		if got := ch.events(); len(got) != 1 || got[0] != "taskAssigned" {
			t.Fatalf("unexpected events %v", got)
		}
	})

	t.Run("failed send drops the channel", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()
		r.Register(7, &fakeChannel{id: "broken", err: errors.New("broken pipe")})
		NewDispatcher(r).Notify(context.Background(), 7, "taskAssigned", nil)
		if _, ok := r.Lookup(7); ok {
			t.Fatalf("broken channel should be unregistered")
		}
	})

	t.Run("broker receives envelope instead of local delivery", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()
		ch := &fakeChannel{id: "x"}
		r.Register(7, ch)
		broker := &fakeBroker{}
		NewDispatcher(r).WithBroker(broker).Notify(context.Background(), 7, "taskAssigned", nil)
		if len(broker.sent) != 1 || broker.sent[0].UserID != 7 {
			t.Fatalf("unexpected broker envelopes %+v", broker.sent)
		}
		if len(ch.events()) != 0 {
			t.Fatalf("local channel should be reached through the broker subscriber only")
		}
	})

	t.Run("broker failure falls back to local delivery", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()
		ch := &fakeChannel{id: "x"}
		r.Register(7, ch)
		NewDispatcher(r).WithBroker(&fakeBroker{err: errors.New("redis down")}).Notify(context.Background(), 7, "taskAssigned", nil)
		if len(ch.events()) != 1 {
			t.Fatalf("expected local fallback delivery")
		}
	})
}

// deadSubscriber accepts publishes but its subscriber loop fails at once, like
// a redis SUBSCRIBE that is refused.
type deadSubscriber struct {
	fakeBroker
}

func (s *deadSubscriber) Run(context.Context, *Dispatcher) error {
	return errors.New("subscribe taskflow:notifications: connection refused")
}

func TestServeDetachesFailedSubscriber(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	ch := &fakeChannel{id: "x"}
	r.Register(7, ch)

	sub := &deadSubscriber{}
	d := NewDispatcher(r).WithBroker(sub)

	if err := d.Serve(context.Background(), sub); err == nil {
		t.Fatalf("expected the subscriber error to be returned")
	}

	d.Notify(context.Background(), 7, "taskAssigned", nil)
	if len(sub.sent) != 0 {
		t.Fatalf("detached broker should not receive envelopes, got %+v", sub.sent)
	}
	if got := ch.events(); len(got) != 1 || got[0] != "taskAssigned" {
		t.Fatalf("expected in-process delivery, got %v", got)
	}
}

func TestServeKeepsReplacementBroker(t *testing.T) {
	t.Parallel()

	sub := &deadSubscriber{}
	replacement := &fakeBroker{}
	d := NewDispatcher(NewRegistry()).WithBroker(replacement)

	_ = d.Serve(context.Background(), sub)

	d.Notify(context.Background(), 7, "taskAssigned", nil)
	if len(replacement.sent) != 1 {
		t.Fatalf("broker that was not served should stay attached")
	}
}
