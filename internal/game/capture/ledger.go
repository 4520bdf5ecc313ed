// Package capture tracks contested capture of buildings: per-building progress
// accumulated on each beat by the contributing units of one team, reset when
// another team takes over, and ownership transfer at the threshold.
package capture

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hexbeat/internal/game/beat"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
)

var (
	// ErrNotCapturable is returned for unregistered buildings and for owned
	// buildings that cannot be recaptured.
	ErrNotCapturable = errors.New("building is not capturable")
	// ErrInvalidTeam is returned when the team cannot capture.
	ErrInvalidTeam = errors.New("team cannot capture")
	// ErrAlreadyOwned is returned when the team already owns the building.
	ErrAlreadyOwned = errors.New("building already owned by team")
	// ErrOutOfRange is returned when the unit is outside capture range.
	ErrOutOfRange = errors.New("unit outside capture range")
)

// Arena supplies building ownership and range queries and performs the
// ownership transfer.
type Arena interface {
	BuildingTeam(buildingID string) (team.Team, bool)
	InCaptureRange(unitID, buildingID string) bool
	TransferBuilding(buildingID string, to team.Team) error
}

// Listener receives capture events. Calls happen on the beat goroutine.
type Listener interface {
	OnCaptureStarted(s State)
	OnCaptureProgress(s State)
	OnCaptureInterrupted(buildingID string, interrupted team.Team, unitIDs []string)
	OnCaptureCompleted(s State)
}

// Config is the capture configuration of one building.
type Config struct {
	Threshold    float64
	Recapturable bool
}

// State is a snapshot of one building's capture.
type State struct {
	BuildingID   string    `json:"building_id"`
	Team         team.Team `json:"team"`
	Progress     float64   `json:"progress"`
	Threshold    float64   `json:"threshold"`
	Contributors []string  `json:"contributors"`
}

// Active reports whether units are currently capturing.
func (s State) Active() bool { return len(s.Contributors) > 0 }

type entry struct {
	buildingID   string
	cfg          Config
	progress     float64
	team         team.Team
	contributors []string
	beats        map[string]int
	sub          *beat.Subscription
}

func (e *entry) state() State {
	return State{
		BuildingID:   e.buildingID,
		Team:         e.team,
		Progress:     e.progress,
		Threshold:    e.cfg.Threshold,
		Contributors: append([]string{}, e.contributors...),
	}
}

func (e *entry) contributes(unitID string) bool {
	for _, id := range e.contributors {
		if id == unitID {
			return true
		}
	}
	return false
}

// Ledger holds the capture state of every registered building.
//
// Ledger is not safe for concurrent use; the engine serializes access.
type Ledger struct {
	bus       *beat.Bus
	arena     Arena
	logger    *zap.Logger
	entries   map[string]*entry
	order     []string
	listeners []Listener
}

// NewLedger creates an empty Ledger.
//
// Precondition: bus, arena and logger must be non-nil.
func NewLedger(bus *beat.Bus, arena Arena, logger *zap.Logger) *Ledger {
	if bus == nil {
		panic("capture.NewLedger: bus must not be nil")
	}
	if arena == nil {
		panic("capture.NewLedger: arena must not be nil")
	}
	if logger == nil {
		panic("capture.NewLedger: logger must not be nil")
	}
	return &Ledger{
		bus:     bus,
		arena:   arena,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// AddListener registers l for capture events.
func (l *Ledger) AddListener(ln Listener) {
	l.listeners = append(l.listeners, ln)
}

// Register creates the capture state for a building.
//
// Precondition: cfg.Threshold must be > 0.
// Postcondition: The building is uncontested with zero progress, or an error is returned.
func (l *Ledger) Register(buildingID string, cfg Config) error {
	if buildingID == "" {
		return fmt.Errorf("capture.Register: building id must not be empty")
	}
	if cfg.Threshold <= 0 {
		return fmt.Errorf("capture.Register %q: threshold must be > 0", buildingID)
	}
	if _, dup := l.entries[buildingID]; dup {
		return fmt.Errorf("capture.Register: building %q already registered", buildingID)
	}
	l.entries[buildingID] = &entry{buildingID: buildingID, cfg: cfg, beats: make(map[string]int)}
	l.order = append(l.order, buildingID)
	return nil
}

// Unregister drops a building's capture state, interrupting any contributors.
func (l *Ledger) Unregister(buildingID string) {
	e, ok := l.entries[buildingID]
	if !ok {
		return
	}
	if len(e.contributors) > 0 {
		l.interrupt(e)
	}
	e.sub.Cancel()
	delete(l.entries, buildingID)
	for i, id := range l.order {
		if id == buildingID {
			l.order = append(l.order[:i:i], l.order[i+1:]...)
			break
		}
	}
}

// StartCapture adds unitID as a contributor for t.
//
// Postcondition: On success the unit contributes from the next beat on; if a
// different team was capturing, its contributors were interrupted and progress
// was reset to zero. Adding a unit twice is a no-op.
func (l *Ledger) StartCapture(buildingID string, t team.Team, unitID string) error {
	e, ok := l.entries[buildingID]
	if !ok {
		return fmt.Errorf("capture.StartCapture %q: %w", buildingID, ErrNotCapturable)
	}
	if !t.CanCapture() {
		return fmt.Errorf("capture.StartCapture %q by %s: %w", buildingID, t, ErrInvalidTeam)
	}
	owner, ok := l.arena.BuildingTeam(buildingID)
	if !ok {
		return fmt.Errorf("capture.StartCapture %q: %w", buildingID, ErrNotCapturable)
	}
	if owner == t {
		return fmt.Errorf("capture.StartCapture %q by %s: %w", buildingID, t, ErrAlreadyOwned)
	}
	if owner.CanCapture() && !e.cfg.Recapturable {
		return fmt.Errorf("capture.StartCapture %q held by %s: %w", buildingID, owner, ErrNotCapturable)
	}
	if !l.arena.InCaptureRange(unitID, buildingID) {
		return fmt.Errorf("capture.StartCapture %q unit %q: %w", buildingID, unitID, ErrOutOfRange)
	}

	if e.team != t {
		if len(e.contributors) > 0 {
			l.interrupt(e)
		}
		e.progress = 0
		e.team = t
	}
	if e.contributes(unitID) {
		return nil
	}
	e.contributors = append(e.contributors, unitID)
	e.beats[unitID] = 0
	if e.sub == nil || !e.sub.Active() {
		e.sub = l.bus.Subscribe(beat.ListenerFunc(func(beat.Beat) { l.tick(e) }))
	}
	s := e.state()
	l.logger.Debug("capture started",
		zap.String("building", buildingID),
		zap.String("unit", unitID),
		zap.Stringer("team", t),
		zap.Float64("progress", e.progress),
	)
	for _, ln := range l.listeners {
		ln.OnCaptureStarted(s)
	}
	return nil
}

// StopCapturing removes unitID from the building's contributors.
//
// Postcondition: When the last contributor leaves, capturing stops but the
// progress and the capturing team are preserved.
func (l *Ledger) StopCapturing(buildingID, unitID string) {
	e, ok := l.entries[buildingID]
	if !ok {
		return
	}
	l.remove(e, unitID)
}

// StopAll removes unitID from every building it contributes to.
func (l *Ledger) StopAll(unitID string) {
	for _, id := range l.order {
		l.remove(l.entries[id], unitID)
	}
}

func (l *Ledger) remove(e *entry, unitID string) {
	for i, id := range e.contributors {
		if id != unitID {
			continue
		}
		e.contributors = append(e.contributors[:i:i], e.contributors[i+1:]...)
		delete(e.beats, unitID)
		if len(e.contributors) == 0 {
			e.sub.Cancel()
		}
		return
	}
}

// IsContributing reports whether unitID currently captures buildingID.
func (l *Ledger) IsContributing(buildingID, unitID string) bool {
	e, ok := l.entries[buildingID]
	return ok && e.contributes(unitID)
}

// BeatsContributed returns how many beats unitID has spent capturing buildingID.
func (l *Ledger) BeatsContributed(buildingID, unitID string) int {
	e, ok := l.entries[buildingID]
	if !ok {
		return 0
	}
	return e.beats[unitID]
}

// State returns the capture snapshot of buildingID.
func (l *Ledger) State(buildingID string) (State, bool) {
	e, ok := l.entries[buildingID]
	if !ok {
		return State{}, false
	}
	return e.state(), true
}

// States returns snapshots of every registered building in registration order.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (l *Ledger) States() []State {
	out := make([]State, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.entries[id].state())
	}
	return out
}

func (l *Ledger) interrupt(e *entry) {
	ids := e.contributors
	old := e.team
	e.contributors = nil
	e.beats = make(map[string]int)
	e.sub.Cancel()
	l.logger.Debug("capture interrupted",
		zap.String("building", e.buildingID),
		zap.Stringer("team", old),
		zap.Strings("units", ids),
	)
	for _, ln := range l.listeners {
		ln.OnCaptureInterrupted(e.buildingID, old, ids)
	}
}

func (l *Ledger) tick(e *entry) {
	if len(e.contributors) == 0 {
		e.sub.Cancel()
		return
	}
	e.progress += float64(len(e.contributors))
	for _, id := range e.contributors {
		e.beats[id]++
	}
	s := e.state()
	for _, ln := range l.listeners {
		ln.OnCaptureProgress(s)
	}
	if e.progress < e.cfg.Threshold {
		return
	}

	winner := e.team
	if err := l.arena.TransferBuilding(e.buildingID, winner); err != nil {
		l.logger.Warn("capture transfer failed",
			zap.String("building", e.buildingID),
			zap.Stringer("team", winner),
			zap.Error(err),
		)
		return
	}
	l.logger.Info("building captured",
		zap.String("building", e.buildingID),
		zap.Stringer("team", winner),
	)
	for _, ln := range l.listeners {
		ln.OnCaptureCompleted(s)
	}
	e.progress = 0
	e.team = team.None
	e.contributors = nil
	e.beats = make(map[string]int)
	e.sub.Cancel()
}
