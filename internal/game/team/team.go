// Package team defines team affiliation and the hostility relation between teams.
package team

import (
	"fmt"
	"strings"
)

// Team identifies the side an entity fights for. The zero value None means
// "no team" and is used by the capture ledger to signal an uncontested building.
type Team int

const (
	None Team = iota
	// Neutral entities belong to nobody and are hostile to nobody.
	Neutral
	// NeutralPlayer entities are unaligned but lean toward the player.
	NeutralPlayer
	// NeutralEnemy entities are unaligned but lean toward the enemy.
	NeutralEnemy
	Player
	Enemy
)

var names = map[Team]string{
	None:          "none",
	Neutral:       "neutral",
	NeutralPlayer: "neutral_player",
	NeutralEnemy:  "neutral_enemy",
	Player:        "player",
	Enemy:         "enemy",
}

// String returns the lower-case snake name used in YAML and on the wire.
func (t Team) String() string {
	if n, ok := names[t]; ok {
		return n
	}
	return fmt.Sprintf("team(%d)", int(t))
}

// Parse maps a name produced by String back to a Team.
//
// Postcondition: Returns the team, or an error naming the unknown value.
func Parse(s string) (Team, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for t, n := range names {
		if n == key {
			return t, nil
		}
	}
	return None, fmt.Errorf("team.Parse: unknown team %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Team) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Team) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// IsNeutral reports whether t is one of the unaligned teams.
func (t Team) IsNeutral() bool {
	return t == Neutral || t == NeutralPlayer || t == NeutralEnemy
}

// CanCapture reports whether units of t may contest a building.
// None and the neutral teams never capture.
func (t Team) CanCapture() bool {
	return t == Player || t == Enemy
}

// Hostile reports whether a and b fight each other.
//
// Postcondition: Hostile(a, b) == Hostile(b, a); Hostile(t, t) is false.
func Hostile(a, b Team) bool {
	switch a {
	case Player:
		return b == Enemy || b == NeutralEnemy
	case Enemy:
		return b == Player || b == NeutralPlayer
	case NeutralEnemy:
		return b == Player
	case NeutralPlayer:
		return b == Enemy
	}
	return false
}
