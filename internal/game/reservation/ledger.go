// Package reservation provides the tile reservation ledger that arbitrates
// which unit may move onto a tile next.
package reservation

import (
	"sort"
	"sync"

	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
)

// Observer is notified after every reservation change.
type Observer interface {
	OnReservationChanged(c hexgrid.Coord, unitID string, reserved bool)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(c hexgrid.Coord, unitID string, reserved bool)

// OnReservationChanged calls f.
func (f ObserverFunc) OnReservationChanged(c hexgrid.Coord, unitID string, reserved bool) {
	f(c, unitID, reserved)
}

// Ledger maps a tile to the single unit allowed to claim it.
//
// Invariant: each tile is a key of at most one reservation.
// All methods are safe for concurrent use; observers are invoked after the
// internal lock has been released.
type Ledger struct {
	mu        sync.Mutex
	entries   map[hexgrid.Coord]string
	observers []Observer
}

// NewLedger returns an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[hexgrid.Coord]string)}
}

// AddObserver registers o.
//
// Precondition: o must not be nil and must only be added before concurrent use begins.
func (l *Ledger) AddObserver(o Observer) {
	if o == nil {
		panic("reservation.Ledger.AddObserver: observer must not be nil")
	}
	l.mu.Lock()
	l.observers = append(l.observers, o)
	l.mu.Unlock()
}

// TryReserve claims c for unitID.
//
// Precondition: unitID must be non-empty.
// Postcondition: Returns true if c is now held by unitID (including when it
// already was); returns false and changes nothing if another unit holds c.
func (l *Ledger) TryReserve(c hexgrid.Coord, unitID string) bool {
	if unitID == "" {
		return false
	}
	l.mu.Lock()
	holder, held := l.entries[c]
	if held {
		l.mu.Unlock()
		return holder == unitID
	}
	l.entries[c] = unitID
	obs := l.observers
	l.mu.Unlock()
	for _, o := range obs {
		o.OnReservationChanged(c, unitID, true)
	}
	return true
}

// Release drops the reservation on c if, and only if, unitID holds it.
//
// Postcondition: Returns true iff a reservation was removed.
func (l *Ledger) Release(c hexgrid.Coord, unitID string) bool {
	l.mu.Lock()
	holder, held := l.entries[c]
	if !held || holder != unitID {
		l.mu.Unlock()
		return false
	}
	delete(l.entries, c)
	obs := l.observers
	l.mu.Unlock()
	for _, o := range obs {
		o.OnReservationChanged(c, unitID, false)
	}
	return true
}

// ReleaseAll drops every reservation held by unitID, e.g. when the unit dies.
//
// Postcondition: Returns the released coordinates in row-major order.
func (l *Ledger) ReleaseAll(unitID string) []hexgrid.Coord {
	l.mu.Lock()
	var released []hexgrid.Coord
	for c, holder := range l.entries {
		if holder == unitID {
			released = append(released, c)
			delete(l.entries, c)
		}
	}
	obs := l.observers
	l.mu.Unlock()
	sort.Slice(released, func(i, j int) bool {
		if released[i].Row != released[j].Row {
			return released[i].Row < released[j].Row
		}
		return released[i].Col < released[j].Col
	})
	for _, c := range released {
		for _, o := range obs {
			o.OnReservationChanged(c, unitID, false)
		}
	}
	return released
}

// Holder returns the unit holding c.
//
// Postcondition: Returns ("", false) if c is unreserved.
func (l *Ledger) Holder(c hexgrid.Coord) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.entries[c]
	return h, ok
}

// IsReserved reports whether any unit holds c.
func (l *Ledger) IsReserved(c hexgrid.Coord) bool {
	_, ok := l.Holder(c)
	return ok
}

// IsReservedBy reports whether unitID holds c.
func (l *Ledger) IsReservedBy(c hexgrid.Coord, unitID string) bool {
	h, ok := l.Holder(c)
	return ok && h == unitID
}

// IsReservedByOther reports whether a unit other than unitID holds c.
func (l *Ledger) IsReservedByOther(c hexgrid.Coord, unitID string) bool {
	h, ok := l.Holder(c)
	return ok && h != unitID
}

// Len returns the number of live reservations.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Snapshot returns a copy of the ledger.
func (l *Ledger) Snapshot() map[hexgrid.Coord]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[hexgrid.Coord]string, len(l.entries))
	for c, h := range l.entries {
		out[c] = h
	}
	return out
}
