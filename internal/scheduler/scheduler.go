package scheduler

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/vi-monitor/internal/protocol"
)

// Pending describes an armed cancellation.
type Pending struct {
	Instrument protocol.Instrument `json:"instrument"`
	ArmedAt    time.Time           `json:"armed_at"`
	FireAt     time.Time           `json:"fire_at"`
}

// FireFunc is called once when a pending cancellation comes due.
type FireFunc func(Pending)

type entry struct {
	id      uint64
	pending Pending
	timer   *time.Timer
}

// Scheduler owns one timer per instrument code.
type Scheduler struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	nextID  uint64
	stopped bool
	running sync.WaitGroup

	now func() time.Time
}

// New creates a Scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger:  logger.With("component", "scheduler"),
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Arm schedules fire to run after delay. An existing timer for the same
// instrument is replaced. Arm returns false once the scheduler is stopped.
func (s *Scheduler) Arm(inst protocol.Instrument, delay time.Duration, fire FireFunc) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return Pending{}, false
	}

	if prev, ok := s.entries[inst.Code]; ok {
		prev.timer.Stop()
		s.logger.Debug("cancellation re-armed", "code", inst.Code, "previous_fire_at", prev.pending.FireAt)
	}

	s.nextID++
	id := s.nextID
	now := s.now()
	p := Pending{Instrument: inst, ArmedAt: now, FireAt: now.Add(delay)}

	e := &entry{id: id, pending: p}
	e.timer = time.AfterFunc(delay, func() { s.fire(inst.Code, id, fire) })
	s.entries[inst.Code] = e

	return p, true
}

func (s *Scheduler) fire(code string, id uint64, fn FireFunc) {
	s.mu.Lock()
	e, ok := s.entries[code]
	if !ok || e.id != id || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.entries, code)
	s.running.Add(1)
	s.mu.Unlock()

	defer s.running.Done()
	fn(e.pending)
}

// Cancel removes the pending cancellation for code. It reports whether one
// was armed.
func (s *Scheduler) Cancel(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[code]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, code)
	return true
}

// Pending returns armed cancellations ordered by fire time.
func (s *Scheduler) Pending() []Pending {
	s.mu.Lock()
	out := make([]Pending, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.pending)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].Instrument.Code < out[j].Instrument.Code
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}

// Len returns the number of armed cancellations.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop cancels all armed timers and waits for running callbacks to return.
// It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.running.Wait()
		return
	}
	s.stopped = true
	cancelled := len(s.entries)
	for code, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, code)
	}
	s.mu.Unlock()

	s.running.Wait()
	s.logger.Info("scheduler stopped", "cancelled", cancelled)
}
