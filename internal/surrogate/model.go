// Package surrogate holds the closed-form residuary resistance estimate
// used by the twin in place of a trained model.
package surrogate

import (
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"yacht-twin/monitor/internal/domain"
)

const (
	waveCoefficient  = 220.0
	waveExponent     = 3.5
	buoyancyOffset   = -2.1
	carbonFactor     = 2.5
	DefaultNoiseStd  = 0.005
	resistanceDigits = 4
	carbonDigits     = 3
)

// NoiseSource draws the additive measurement noise.
type NoiseSource interface {
	Rand() float64
}

// ZeroNoise makes the model deterministic.
type ZeroNoise struct{}

func (ZeroNoise) Rand() float64 { return 0 }

// NewGaussianNoise returns a zero-mean normal source. A nil src uses the
// global generator.
func NewGaussianNoise(std float64, src rand.Source) distuv.Normal {
	return distuv.Normal{Mu: 0, Sigma: std, Src: src}
}

type Model struct {
	mu    sync.Mutex
	noise NoiseSource
}

func NewModel(noise NoiseSource) *Model {
	if noise == nil {
		noise = NewGaussianNoise(DefaultNoiseStd, nil)
	}
	return &Model{noise: noise}
}

// Deterministic is the noise-free resistance formula.
func Deterministic(p domain.Parameters) float64 {
	speed := math.Pow(p.Fr, waveExponent) * waveCoefficient
	form := p.PC*1.5 + p.LD*0.5
	ratio := p.LB*0.3 + p.BDr*0.4
	buoyancy := math.Abs(p.LC-buoyancyOffset) * 0.5
	return speed + form + ratio + buoyancy
}

// Predict returns the noisy estimate rounded to four decimals.
func (m *Model) Predict(p domain.Parameters) float64 {
	m.mu.Lock()
	eps := m.noise.Rand()
	m.mu.Unlock()
	return Round(Deterministic(p)+eps, resistanceDigits)
}

// Carbon derives the carbon-intensity proxy from resistance and speed.
func Carbon(rr, fr float64) float64 {
	return Round(rr*fr*carbonFactor, carbonDigits)
}

// Assessment is the synchronous result for one parameter vector.
type Assessment struct {
	Resistance     float64     `json:"rr"`
	Carbon         float64     `json:"carbon"`
	Recommendation string      `json:"recommendation"`
	Tier           domain.Tier `json:"-"`
}

func (m *Model) Assess(p domain.Parameters) Assessment {
	rr := m.Predict(p)
	carbon := Carbon(rr, p.Fr)
	tier := domain.Classify(rr, carbon, p.Fr)
	return Assessment{
		Resistance:     rr,
		Carbon:         carbon,
		Recommendation: tier.Message(),
		Tier:           tier,
	}
}

func Round(x float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(x*scale) / scale
}
