package beat

// Gate counts beats for one in-flight action and reports when its discrete
// effect is due.
//
// Invariant: 0 <= elapsed < max(Delay, 1).
type Gate struct {
	delay   int
	elapsed int
}

// NewGate returns a Gate requiring delay beats between effects. A delay of
// zero or one fires on every beat.
func NewGate(delay int) Gate {
	if delay < 0 {
		delay = 0
	}
	return Gate{delay: delay}
}

// Tick consumes one beat.
//
// Postcondition: Returns true when the effect must be applied on this beat,
// in which case the counter has been reset.
func (g *Gate) Tick() bool {
	if g.delay <= 0 {
		return true
	}
	g.elapsed++
	if g.elapsed >= g.delay {
		g.elapsed = 0
		return true
	}
	return false
}

// Reset restarts the wait.
func (g *Gate) Reset() { g.elapsed = 0 }

// Delay returns the configured delay in beats.
func (g *Gate) Delay() int { return g.delay }

// Elapsed returns the beats counted since the last effect.
func (g *Gate) Elapsed() int { return g.elapsed }
