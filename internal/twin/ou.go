package twin

const (
	DefaultTheta    = 0.8
	DefaultSigma    = 0.006
	DefaultDt       = 0.5
	DefaultSpeedMin = 0.05
	DefaultSpeedMax = 0.6
)

// OUProcess is an Ornstein-Uhlenbeck update for the speed parameter,
// clamped to [Min, Max] after every step.
type OUProcess struct {
	Theta float64
	Sigma float64
	Dt    float64
	Min   float64
	Max   float64
}

func DefaultOUProcess() OUProcess {
	return OUProcess{
		Theta: DefaultTheta,
		Sigma: DefaultSigma,
		Dt:    DefaultDt,
		Min:   DefaultSpeedMin,
		Max:   DefaultSpeedMax,
	}
}

// Step advances x toward target given a standard normal draw z.
func (o OUProcess) Step(x, target, z float64) float64 {
	drift := o.Theta * (target - x) * o.Dt
	diffusion := o.Sigma * z
	return o.Clamp(x + drift + diffusion)
}

func (o OUProcess) Clamp(x float64) float64 {
	if x < o.Min {
		return o.Min
	}
	if x > o.Max {
		return o.Max
	}
	return x
}
