// Package twin owns the mutable digital-twin record shared by the telemetry
// loop and the HTTP handlers.
package twin

import (
	"sync"

	"yacht-twin/monitor/internal/domain"
)

const DefaultHistorySize = 30

// State is safe for concurrent use. Every read-modify-write happens under a
// single mutex so a tick and an update never interleave mid-way.
type State struct {
	mu       sync.Mutex
	params   domain.Parameters
	targetFr float64
	running  bool
	history  []domain.HistoryPoint
	capacity int
}

func NewState(params domain.Parameters, capacity int) *State {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &State{
		params:   params,
		targetFr: params.Fr,
		history:  make([]domain.HistoryPoint, 0, capacity+1),
		capacity: capacity,
	}
}

func (s *State) Params() domain.Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

func (s *State) TargetFr() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetFr
}

func (s *State) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Apply merges u into the current parameters. A speed in the update also
// becomes the new target for the mean-reverting process. Values are stored
// as given; clamping only happens during autonomous advancement.
func (s *State) Apply(u domain.ParameterUpdate) domain.Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.params = s.params.Merge(u)
	if u.Fr != nil {
		s.targetFr = *u.Fr
	}
	return s.params
}

// Toggle flips the run flag and returns the new value.
func (s *State) Toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = !s.running
	return s.running
}

func (s *State) SetRunning(running bool) {
	s.mu.Lock()
	s.running = running
	s.mu.Unlock()
}

// History returns a copy of the buffer, oldest first.
func (s *State) History() []domain.HistoryPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.HistoryPoint, len(s.history))
	copy(out, s.history)
	return out
}

func (s *State) Capacity() int {
	return s.capacity
}

func (s *State) Append(p domain.HistoryPoint) {
	s.mu.Lock()
	s.appendLocked(p)
	s.mu.Unlock()
}

func (s *State) appendLocked(p domain.HistoryPoint) {
	s.history = append(s.history, p)
	if over := len(s.history) - s.capacity; over > 0 {
		n := copy(s.history, s.history[over:])
		s.history = s.history[:n]
	}
}

// Step computes the next parameters and the history point for one tick.
type Step func(params domain.Parameters, targetFr float64) (domain.Parameters, domain.HistoryPoint)

// Tick is the outcome of one running advance.
type Tick struct {
	Params   domain.Parameters
	TargetFr float64
	Point    domain.HistoryPoint
}

// Advance runs step against the current state and records its result,
// atomically. When the twin is stopped nothing changes and ok is false.
func (s *State) Advance(step Step) (tick Tick, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return Tick{}, false
	}

	params, point := step(s.params, s.targetFr)
	s.params = params
	s.appendLocked(point)

	return Tick{Params: params, TargetFr: s.targetFr, Point: point}, true
}
