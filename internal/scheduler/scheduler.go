// Package scheduler coalesces lift diffs and applies them to the store at a
// bounded rate.
//
// Lifecycle: Idle -> Scheduled (first diff arms a BatchWindow timer) ->
// Flushing (timer fired and MinRenderGap since the last store update has
// elapsed, otherwise the timer is re-armed for the remainder) -> Idle.
// Snapshots bypass the buffer. Close is terminal.
package scheduler

import (
	"sync"
	"time"

	"smartlift_monitor/internal/models"
)

// Default timing.
const (
	DefaultBatchWindow  = 50 * time.Millisecond
	DefaultMinRenderGap = 150 * time.Millisecond
)

// Sink is the state table the scheduler writes to.
type Sink interface {
	Replace(lifts map[string]models.Lift)
	Merge(lifts map[string]models.Lift)
	Clear()
	Get(id string) (models.Lift, bool)
}

// Config controls flush timing.
type Config struct {
	BatchWindow  time.Duration
	MinRenderGap time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchWindow <= 0 {
		c.BatchWindow = DefaultBatchWindow
	}
	if c.MinRenderGap < 0 {
		c.MinRenderGap = 0
	}
	return c
}

// Phase is the scheduler's state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScheduled
	PhaseFlushing
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScheduled:
		return "scheduled"
	case PhaseFlushing:
		return "flushing"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithFlushHook is called after every diff flush with the batch size.
func WithFlushHook(f func(batch int)) Option {
	return func(s *Scheduler) { s.onFlush = f }
}

// Scheduler buffers diffs per lift id (last write wins) between flushes.
type Scheduler struct {
	mu      sync.Mutex
	cfg     Config
	clock   Clock
	sink    Sink
	onFlush func(batch int)

	phase      Phase
	pending    map[string]models.Lift
	timer      Timer
	gen        uint64 // invalidates callbacks of stopped timers
	lastUpdate time.Time
}

// New returns an idle scheduler writing to sink.
func New(sink Sink, cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:     cfg.withDefaults(),
		clock:   RealClock(),
		sink:    sink,
		pending: make(map[string]models.Lift),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue buffers lifts for the next flush.
func (s *Scheduler) Enqueue(lifts map[string]models.Lift) {
	if len(lifts) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		return
	}
	for id, l := range lifts {
		s.pending[id] = l
	}
	if s.phase == PhaseIdle {
		s.arm(s.cfg.BatchWindow)
		s.phase = PhaseScheduled
	}
}

// Snapshot replaces the store immediately and discards buffered diffs.
func (s *Scheduler) Snapshot(lifts map[string]models.Lift) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		return
	}
	s.disarm()
	s.pending = make(map[string]models.Lift)
	s.phase = PhaseIdle
	s.sink.Replace(lifts)
	s.lastUpdate = s.clock.Now()
}

// Latest returns the newest known record for id: buffered first, then stored.
func (s *Scheduler) Latest(id string) (models.Lift, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.pending[id]; ok {
		return l, true
	}
	return s.sink.Get(id)
}

// Close cancels any armed flush, discards the buffer and clears the store.
// Every later call is a no-op.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		return
	}
	s.disarm()
	s.pending = nil
	s.phase = PhaseClosed
	s.sink.Clear()
}

// Phase returns the current state.
func (s *Scheduler) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Pending returns the number of buffered lifts.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// arm must be called with s.mu held.
func (s *Scheduler) arm(d time.Duration) {
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() { s.fire(gen) })
}

// disarm must be called with s.mu held.
func (s *Scheduler) disarm() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseScheduled || gen != s.gen {
		return
	}

	now := s.clock.Now()
	if !s.lastUpdate.IsZero() {
		if wait := s.cfg.MinRenderGap - now.Sub(s.lastUpdate); wait > 0 {
			s.arm(wait)
			return
		}
	}

	s.phase = PhaseFlushing
	s.timer = nil
	batch := s.pending
	s.pending = make(map[string]models.Lift)
	if len(batch) > 0 {
		s.sink.Merge(batch)
		s.lastUpdate = now
		if s.onFlush != nil {
			s.onFlush(len(batch))
		}
	}
	s.phase = PhaseIdle
}
