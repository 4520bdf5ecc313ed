package unit

import (
	"fmt"

	"github.com/cory-johannsen/hexbeat/internal/game/hexgrid"
	"github.com/cory-johannsen/hexbeat/internal/game/team"
)

// Activity is the unit's in-flight action. The values are mutually exclusive.
type Activity int

const (
	Idle Activity = iota
	Moving
	Attacking
	Capturing
)

// String returns the activity name.
func (a Activity) String() string {
	switch a {
	case Idle:
		return "idle"
	case Moving:
		return "moving"
	case Attacking:
		return "attacking"
	case Capturing:
		return "capturing"
	}
	return fmt.Sprintf("activity(%d)", int(a))
}

// Unit is a live unit on the grid.
type Unit struct {
	ID         string
	TemplateID string
	Name       string
	Team       team.Team
	Pos        hexgrid.Coord

	Health    int
	MaxHealth int
	Attack    int
	Defense   int

	AttackRange    int
	DetectionRange int
	MovementDelay  int
	AttackDelay    int

	// Defensive is set while the unit holds a defend position; defensive units
	// engage only enemies that are already in attack range.
	Defensive bool
	// BeatsCapturing counts beats contributed to the current capture.
	BeatsCapturing int

	activity  Activity
	despawned bool
}

// New creates a unit from tmpl.
//
// Precondition: id must be non-empty; tmpl must be non-nil.
// Postcondition: Health equals tmpl.MaxHealth and the unit is Idle.
func New(id string, tmpl *Template, t team.Team, pos hexgrid.Coord) *Unit {
	if tmpl == nil {
		panic("unit.New: tmpl must not be nil")
	}
	return &Unit{
		ID:             id,
		TemplateID:     tmpl.ID,
		Name:           tmpl.Name,
		Team:           t,
		Pos:            pos,
		Health:         tmpl.MaxHealth,
		MaxHealth:      tmpl.MaxHealth,
		Attack:         tmpl.Attack,
		Defense:        tmpl.Defense,
		AttackRange:    tmpl.AttackRange,
		DetectionRange: tmpl.DetectionRange,
		MovementDelay:  tmpl.MovementDelay,
		AttackDelay:    tmpl.AttackDelay,
	}
}

// Alive reports whether the unit still participates in the simulation.
func (u *Unit) Alive() bool {
	return u.Health > 0 && !u.despawned
}

// Activity returns the in-flight action.
func (u *Unit) Activity() Activity { return u.activity }

// Busy reports whether an in-flight action suppresses re-decision.
func (u *Unit) Busy() bool { return u.activity != Idle }

// SetActivity replaces the in-flight action. Leaving Capturing resets BeatsCapturing.
func (u *Unit) SetActivity(a Activity) {
	if u.activity == Capturing && a != Capturing {
		u.BeatsCapturing = 0
	}
	u.activity = a
}

// Despawn marks the unit as removed without dying in combat.
func (u *Unit) Despawn() {
	u.despawned = true
	u.activity = Idle
}

// Despawned reports whether Despawn was called.
func (u *Unit) Despawned() bool { return u.despawned }

// Damage returns the damage an attacker with the given attack deals to a
// defender with the given defense. Every landed strike deals at least 1.
func Damage(attack, defense int) int {
	return max(1, attack-defense)
}

// TakeDamage subtracts dmg from Health.
//
// Precondition: dmg >= 0.
// Postcondition: Returns true if this hit killed the unit. Health never drops below 0.
func (u *Unit) TakeDamage(dmg int) (died bool) {
	if dmg <= 0 || !u.Alive() {
		return false
	}
	u.Health -= dmg
	if u.Health <= 0 {
		u.Health = 0
		u.activity = Idle
		return true
	}
	return false
}
