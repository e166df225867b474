package twin

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yacht-twin/monitor/internal/domain"
)

func point(i int) domain.HistoryPoint {
	return domain.HistoryPoint{
		Timestamp:  time.Unix(int64(i), 0),
		Resistance: float64(i),
		Tier:       domain.TierStable,
	}
}

func TestNewState_Defaults(t *testing.T) {
	s := NewState(domain.DefaultParameters(), 0)

	assert.Equal(t, domain.DefaultParameters(), s.Params())
	assert.Equal(t, 0.30, s.TargetFr())
	assert.False(t, s.Running())
	assert.Empty(t, s.History())
	assert.Equal(t, DefaultHistorySize, s.Capacity())
}

func TestState_HistoryEvictsOldestFirst(t *testing.T) {
	s := NewState(domain.DefaultParameters(), DefaultHistorySize)

	for i := 0; i < 35; i++ {
		s.Append(point(i))
	}

	h := s.History()
	require.Len(t, h, 30)
	for i, p := range h {
		assert.Equal(t, float64(i+5), p.Resistance)
	}
}

func TestState_HistoryIsCopied(t *testing.T) {
	s := NewState(domain.DefaultParameters(), 3)
	s.Append(point(1))

	h := s.History()
	h[0].Resistance = 99

	assert.Equal(t, 1.0, s.History()[0].Resistance)
}

func TestState_ToggleTwiceRestores(t *testing.T) {
	s := NewState(domain.DefaultParameters(), 0)
	before := s.Running()

	assert.Equal(t, !before, s.Toggle())
	assert.Equal(t, before, s.Toggle())
	assert.Equal(t, before, s.Running())
}

func TestState_ApplyPartialUpdate(t *testing.T) {
	s := NewState(domain.DefaultParameters(), 0)
	fr := 0.45

	got := s.Apply(domain.ParameterUpdate{Fr: &fr})

	want := domain.DefaultParameters()
	want.Fr = 0.45
	assert.Equal(t, want, got)
	assert.Equal(t, want, s.Params())
	assert.Equal(t, 0.45, s.TargetFr())
}

func TestState_ApplyWithoutSpeedKeepsTarget(t *testing.T) {
	s := NewState(domain.DefaultParameters(), 0)
	pc := 0.7

	s.Apply(domain.ParameterUpdate{PC: &pc})

	assert.Equal(t, 0.7, s.Params().PC)
	assert.Equal(t, 0.30, s.TargetFr())
}

// Speeds supplied through an update are not clamped; only the loop clamps.
func TestState_ApplyDoesNotClampSpeed(t *testing.T) {
	s := NewState(domain.DefaultParameters(), 0)
	fr := 0.95

	s.Apply(domain.ParameterUpdate{Fr: &fr})

	assert.Equal(t, 0.95, s.Params().Fr)
	assert.Equal(t, 0.95, s.TargetFr())
}

func TestState_AdvanceIdleWhenStopped(t *testing.T) {
	s := NewState(domain.DefaultParameters(), 0)
	called := false

	_, ok := s.Advance(func(p domain.Parameters, target float64) (domain.Parameters, domain.HistoryPoint) {
		called = true
		return p, point(0)
	})

	assert.False(t, ok)
	assert.False(t, called)
	assert.Empty(t, s.History())
}

func TestState_AdvanceRecordsTick(t *testing.T) {
	s := NewState(domain.DefaultParameters(), 0)
	s.SetRunning(true)

	tick, ok := s.Advance(func(p domain.Parameters, target float64) (domain.Parameters, domain.HistoryPoint) {
		p.Fr = 0.31
		return p, point(7)
	})

	require.True(t, ok)
	assert.Equal(t, 0.31, tick.Params.Fr)
	assert.Equal(t, 0.30, tick.TargetFr)
	assert.Equal(t, 0.31, s.Params().Fr)
	require.Len(t, s.History(), 1)
	assert.Equal(t, 7.0, s.History()[0].Resistance)
}

func TestState_ConcurrentAccess(t *testing.T) {
	s := NewState(domain.DefaultParameters(), 0)
	s.SetRunning(true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v := float64(j)
				s.Apply(domain.ParameterUpdate{LD: &v})
				s.Advance(func(p domain.Parameters, target float64) (domain.Parameters, domain.HistoryPoint) {
					return p, point(j)
				})
				_ = s.History()
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.History(), DefaultHistorySize)
}
