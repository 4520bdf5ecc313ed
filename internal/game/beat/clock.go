package beat

import (
	"fmt"
	"sync"
	"time"
)

// Interval returns the beat duration for a tempo in beats per minute.
//
// Precondition: bpm > 0.
func Interval(bpm float64) time.Duration {
	if bpm <= 0 {
		panic(fmt.Sprintf("beat.Interval: bpm must be positive, got %v", bpm))
	}
	return time.Duration(float64(time.Minute) / bpm)
}

// Clock emits beats at a steady tempo to channel subscribers.
type Clock struct {
	interval    time.Duration
	mu          sync.Mutex
	index       uint64
	subscribers map[chan<- Beat]struct{}
}

// NewClock creates a stopped Clock at bpm beats per minute.
//
// Precondition: bpm > 0.
// Postcondition: Returns a non-nil *Clock ready to Start().
func NewClock(bpm float64) *Clock {
	return &Clock{
		interval:    Interval(bpm),
		subscribers: make(map[chan<- Beat]struct{}),
	}
}

// Interval returns the duration of one beat.
func (c *Clock) Interval() time.Duration { return c.interval }

// Current returns the index of the most recently emitted beat (0 before the first).
func (c *Clock) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Subscribe registers ch to receive every beat. If ch is full the beat is
// dropped for that subscriber.
//
// Precondition: ch must not be nil.
func (c *Clock) Subscribe(ch chan<- Beat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers[ch] = struct{}{}
}

// Unsubscribe removes ch.
func (c *Clock) Unsubscribe(ch chan<- Beat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscribers, ch)
}

// Start launches the ticker goroutine and returns an idempotent stop function.
//
// Postcondition: One Beat per interval is offered to every subscriber until stop() is called.
func (c *Clock) Start() (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.mu.Lock()
				c.index++
				b := Beat{Index: c.index, Duration: c.interval}
				subs := make([]chan<- Beat, 0, len(c.subscribers))
				for ch := range c.subscribers {
					subs = append(subs, ch)
				}
				c.mu.Unlock()
				for _, ch := range subs {
					select {
					case ch <- b:
					default:
					}
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		once.Do(func() { close(done) })
	}
}

// Sequence returns a function producing consecutive beats of the given
// duration without a real clock. It drives headless runs and tests.
func Sequence(d time.Duration) func() Beat {
	var i uint64
	return func() Beat {
		i++
		return Beat{Index: i, Duration: d}
	}
}
