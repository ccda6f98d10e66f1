package realtime

import (
	"context"
	"sync"
)

// Channel is one live client connection.
type Channel interface {
	ID() string
	// Send queues frame without blocking. false means the channel is
	// closed or too far behind.
	Send(frame []byte) bool
	Close()
}

// Registry maps users to their live channels on this node.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]Channel
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]map[string]Channel)}
}

// Register adds ch and reports whether userID just came online.
func (r *Registry) Register(userID string, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[string]Channel)
		r.byUser[userID] = set
	}
	set[ch.ID()] = ch
	return !ok
}

// Unregister removes a channel and reports whether userID went offline.
func (r *Registry) Unregister(userID, channelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.byUser[userID]
	if !ok {
		return false
	}
	if _, ok := set[channelID]; !ok {
		return false
	}
	delete(set, channelID)
	if len(set) == 0 {
		delete(r.byUser, userID)
		return true
	}
	return false
}

func (r *Registry) Channels(userID string) []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[userID]
	out := make([]Channel, 0, len(set))
	for _, ch := range set {
		out = append(out, ch)
	}
	return out
}

func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

func (r *Registry) IsOnline(_ context.Context, userID string) bool {
	return r.Online(userID)
}

// Count is the number of live channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.byUser {
		n += len(set)
	}
	return n
}
