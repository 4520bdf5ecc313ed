package journal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultBuffer is the channel capacity used when none is configured.
const DefaultBuffer = 1024

const maxBatch = 128

// Recorder accepts events without blocking and writes them to its sinks on a
// dedicated goroutine. Events are dropped, and counted, when the buffer is full.
type Recorder struct {
	logger *zap.Logger
	sinks  []Sink
	now    func() time.Time

	mu      sync.RWMutex
	closed  bool
	started bool
	ch      chan Event
	done    chan struct{}

	seq     atomic.Uint64
	dropped atomic.Uint64
	written atomic.Uint64
	stop    sync.Once
}

// NewRecorder creates a Recorder. A buffer <= 0 uses DefaultBuffer.
//
// Precondition: logger must be non-nil.
func NewRecorder(logger *zap.Logger, buffer int, sinks ...Sink) *Recorder {
	if logger == nil {
		panic("journal.NewRecorder: logger must not be nil")
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Recorder{
		logger: logger,
		sinks:  sinks,
		now:    time.Now,
		ch:     make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// Record enqueues ev, stamping its sequence number and time.
//
// Postcondition: Never blocks; returns after enqueuing or dropping ev.
func (r *Recorder) Record(ev Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	ev.Seq = r.seq.Add(1)
	if ev.At.IsZero() {
		ev.At = r.now().UTC()
	}
	select {
	case r.ch <- ev:
	default:
		if r.dropped.Add(1)%100 == 1 {
			r.logger.Warn("journal buffer full, dropping events", zap.Uint64("dropped", r.dropped.Load()))
		}
	}
}

// Dropped returns how many events were discarded.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Written returns how many events reached every sink.
func (r *Recorder) Written() uint64 { return r.written.Load() }

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("journal: recorder already started")

// Start drains the buffer until Stop is called. It blocks, which makes the
// Recorder usable as a lifecycle service. Start after Stop returns nil at once.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.started {
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return nil
		}
		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()
	return r.drain()
}

func (r *Recorder) drain() error {
	defer close(r.done)
	batch := make([]Event, 0, maxBatch)
	for ev := range r.ch {
		batch = append(batch[:0], ev)
	fill:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-r.ch:
				if !ok {
					break fill
				}
				batch = append(batch, next)
			default:
				break fill
			}
		}
		r.flush(batch)
	}
	return r.closeSinks()
}

// Stop closes the buffer and waits for queued events to be written. When Start
// never ran, Stop drains the buffer and closes the sinks itself.
func (r *Recorder) Stop() {
	r.stop.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.ch)
		inline := !r.started
		r.started = true
		r.mu.Unlock()
		if inline {
			if err := r.drain(); err != nil {
				r.logger.Warn("closing journal sinks", zap.Error(err))
			}
		}
	})
	<-r.done
}

func (r *Recorder) flush(batch []Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok := true
	for _, s := range r.sinks {
		if err := s.WriteEvents(ctx, batch); err != nil {
			ok = false
			r.logger.Error("journal sink write failed", zap.Int("events", len(batch)), zap.Error(err))
		}
	}
	if ok {
		r.written.Add(uint64(len(batch)))
	}
}

func (r *Recorder) closeSinks() error {
	var errs []error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
