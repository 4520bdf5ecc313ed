// Package beat carries the musical beat clock into the simulation: the Beat
// value, a synchronous subscription Bus for in-flight actions, the per-action
// delay Gate, and a tempo-driven Clock for hosts.
package beat

import (
	"sync"
	"time"
)

// Beat is one tick of the musical clock.
type Beat struct {
	// Index is 1 for the first beat of a session and increases by one per tick.
	Index uint64
	// Duration is the length of this beat at the current tempo.
	Duration time.Duration
}

// Listener receives beats while subscribed.
type Listener interface {
	OnBeat(b Beat)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(b Beat)

// OnBeat calls f(b).
func (f ListenerFunc) OnBeat(b Beat) { f(b) }

// Subscription is the handle returned by Bus.Subscribe.
type Subscription struct {
	bus    *Bus
	id     uint64
	l      Listener
	active bool
}

// Cancel removes the subscription. It is idempotent and may be called from
// inside a listener during dispatch; a cancelled subscriber is never called
// again, not even later in the same dispatch.
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.remove(s)
}

// Active reports whether the subscription still receives beats.
func (s *Subscription) Active() bool {
	if s == nil || s.bus == nil {
		return false
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	return s.active
}

// Bus dispatches beats to its subscribers synchronously in subscription order.
//
// Subscribers added during a dispatch first receive the following beat.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   []*Subscription
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers l.
//
// Precondition: l must not be nil.
// Postcondition: Returns an active Subscription.
func (b *Bus) Subscribe(l Listener) *Subscription {
	if l == nil {
		panic("beat.Bus.Subscribe: listener must not be nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &Subscription{bus: b, id: b.nextID, l: l, active: true}
	b.subs = append(b.subs, s)
	return s
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	for i, cur := range b.subs {
		if cur == s {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers beat to every subscriber active at the time of the call.
func (b *Bus) Publish(beat Beat) {
	b.mu.Lock()
	snapshot := make([]*Subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.Unlock()

	for _, s := range snapshot {
		b.mu.Lock()
		active := s.active
		b.mu.Unlock()
		if active {
			s.l.OnBeat(beat)
		}
	}
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
