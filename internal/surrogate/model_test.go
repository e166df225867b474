package surrogate

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yacht-twin/monitor/internal/domain"
)

type fixedNoise float64

func (f fixedNoise) Rand() float64 { return float64(f) }

func TestDeterministic_DefaultParameters(t *testing.T) {
	p := domain.DefaultParameters()

	want := math.Pow(0.30, 3.5)*220 +
		(0.55*1.5 + 4.5*0.5) +
		(2.8*0.3 + 3.2*0.4) +
		math.Abs(-2.3+2.1)*0.5

	assert.InDelta(t, want, Deterministic(p), 1e-12)
}

func TestDeterministic_SpeedDominates(t *testing.T) {
	slow := domain.DefaultParameters()
	slow.Fr = 0.1
	fast := domain.DefaultParameters()
	fast.Fr = 0.5

	assert.Greater(t, Deterministic(fast)-Deterministic(slow), 15.0)
}

func TestDeterministic_BuoyancyIsSymmetric(t *testing.T) {
	a := domain.DefaultParameters()
	a.LC = -2.1 - 0.7
	b := domain.DefaultParameters()
	b.LC = -2.1 + 0.7

	assert.InDelta(t, Deterministic(a), Deterministic(b), 1e-12)
}

func TestPredict_ZeroNoiseIsRoundedFormula(t *testing.T) {
	m := NewModel(ZeroNoise{})
	p := domain.DefaultParameters()

	assert.Equal(t, Round(Deterministic(p), 4), m.Predict(p))
}

func TestPredict_AddsNoise(t *testing.T) {
	m := NewModel(fixedNoise(0.01))
	p := domain.DefaultParameters()

	assert.InDelta(t, Deterministic(p)+0.01, m.Predict(p), 1e-4)
}

func TestPredict_StaysNearFormula(t *testing.T) {
	m := NewModel(NewGaussianNoise(DefaultNoiseStd, rand.NewPCG(1, 2)))
	r := rand.New(rand.NewPCG(3, 4))

	for i := 0; i < 2000; i++ {
		p := domain.Parameters{
			LC:  -5 + 5*r.Float64(),
			PC:  0.5 + 0.3*r.Float64(),
			LD:  3 + 3*r.Float64(),
			BDr: 2 + 3*r.Float64(),
			LB:  2 + 3*r.Float64(),
			Fr:  0.05 + 0.55*r.Float64(),
		}
		got := m.Predict(p)
		require.False(t, math.IsNaN(got) || math.IsInf(got, 0))
		// six standard deviations plus rounding
		assert.InDelta(t, Deterministic(p), got, 6*DefaultNoiseStd+5e-5)
	}
}

func TestPredict_NegativeSpeedPropagatesNaN(t *testing.T) {
	m := NewModel(ZeroNoise{})
	p := domain.DefaultParameters()
	p.Fr = -0.2

	assert.True(t, math.IsNaN(m.Predict(p)))
}

func TestCarbon(t *testing.T) {
	assert.Equal(t, 7.5, Carbon(10, 0.3))
	assert.Equal(t, 1.25, Carbon(2, 0.25))
}

func TestAssess(t *testing.T) {
	m := NewModel(ZeroNoise{})
	p := domain.DefaultParameters()
	p.Fr = 0.55

	got := m.Assess(p)

	assert.Equal(t, Carbon(got.Resistance, 0.55), got.Carbon)
	assert.Equal(t, domain.Classify(got.Resistance, got.Carbon, 0.55), got.Tier)
	assert.Equal(t, got.Tier.Message(), got.Recommendation)
	assert.Equal(t, domain.TierCritical, got.Tier)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.2346, Round(1.23456, 4))
	assert.Equal(t, -0.5, Round(-0.4999999, 4))
	assert.Equal(t, 3.0, Round(3, 2))
}
