package notify

import (
	"sync"
)

// Channel is a live connection to one client session.
type Channel interface {
	ID() string
	Send(event string, payload any) error
}

// Registry maps online users to their active channel. A user has at most one
// channel; registering again replaces the previous one.
type Registry struct {
	mu     sync.RWMutex
	online map[uint]Channel
}

func NewRegistry() *Registry {
	return &Registry{online: make(map[uint]Channel)}
}

func (r *Registry) Register(userID uint, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.online[userID] = ch
}

// UnregisterByChannel removes every user still bound to channelID. A user that
// re-registered on a newer channel in the meantime is left alone.
func (r *Registry) UnregisterByChannel(channelID string) []uint {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []uint
	for userID, ch := range r.online {
		if ch.ID() == channelID {
			delete(r.online, userID)
			removed = append(removed, userID)
		}
	}
	return removed
}

func (r *Registry) Lookup(userID uint) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.online[userID]
	return ch, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.online)
}
