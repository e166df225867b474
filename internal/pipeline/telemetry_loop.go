package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"

	"yacht-twin/monitor/internal/domain"
	"yacht-twin/monitor/internal/metrics"
	"yacht-twin/monitor/internal/surrogate"
	"yacht-twin/monitor/internal/twin"
)

// NormalSource draws standard normal variates for the OU diffusion term.
type NormalSource interface {
	Rand() float64
}

// Sink receives every recorded sample. *Dispatcher satisfies it.
type Sink interface {
	Dispatch(msg *domain.TelemetrySample)
}

type LoopOptions struct {
	Interval  time.Duration
	Process   twin.OUProcess
	Normal    NormalSource
	Clock     func() time.Time
	Sink      Sink
	SessionID string
}

// TelemetryLoop advances the twin on a fixed period while it is running.
// When stopped it still wakes every period but leaves the state alone.
type TelemetryLoop struct {
	state     *twin.State
	model     *surrogate.Model
	process   twin.OUProcess
	normal    NormalSource
	interval  time.Duration
	now       func() time.Time
	sink      Sink
	sessionID string
	logger    zerolog.Logger
}

func NewTelemetryLoop(
	state *twin.State,
	model *surrogate.Model,
	opts LoopOptions,
	logger zerolog.Logger,
) *TelemetryLoop {
	if opts.Interval <= 0 {
		opts.Interval = time.Duration(twin.DefaultDt * float64(time.Second))
	}
	if opts.Process == (twin.OUProcess{}) {
		opts.Process = twin.DefaultOUProcess()
	}
	if opts.Normal == nil {
		opts.Normal = distuv.UnitNormal
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &TelemetryLoop{
		state:     state,
		model:     model,
		process:   opts.Process,
		normal:    opts.Normal,
		interval:  opts.Interval,
		now:       opts.Clock,
		sink:      opts.Sink,
		sessionID: opts.SessionID,
		logger:    logger.With().Str("component", "telemetry_loop").Logger(),
	}
}

// Run ticks until ctx is cancelled.
func (l *TelemetryLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info().Dur("interval", l.interval).Msg("telemetry loop started")

	for {
		select {
		case <-ticker.C:
			l.Tick()

		case <-ctx.Done():
			l.logger.Info().Msg("telemetry loop stopped")
			return nil
		}
	}
}

// Tick performs one period of work and reports whether the twin advanced.
func (l *TelemetryLoop) Tick() (twin.Tick, bool) {
	tick, ok := l.state.Advance(l.step)
	if !ok {
		metrics.TicksTotal.WithLabelValues("idle").Inc()
		metrics.Running.Set(0)
		return tick, false
	}

	metrics.TicksTotal.WithLabelValues("running").Inc()
	metrics.Running.Set(1)
	metrics.HistoryAppends.Inc()
	metrics.TierTotal.WithLabelValues(string(tick.Point.Tier)).Inc()
	metrics.Resistance.Set(tick.Point.Resistance)
	metrics.Carbon.Set(tick.Point.Carbon)
	metrics.Speed.Set(tick.Params.Fr)

	l.logger.Debug().
		Float64("fr", tick.Params.Fr).
		Float64("rr", tick.Point.Resistance).
		Float64("carbon", tick.Point.Carbon).
		Str("tier", string(tick.Point.Tier)).
		Msg("tick")

	if l.sink != nil {
		l.sink.Dispatch(&domain.TelemetrySample{
			SessionID: l.sessionID,
			Point:     tick.Point,
			Params:    tick.Params,
			TargetFr:  tick.TargetFr,
		})
	}

	return tick, true
}

func (l *TelemetryLoop) step(p domain.Parameters, target float64) (domain.Parameters, domain.HistoryPoint) {
	p.Fr = l.process.Step(p.Fr, target, l.normal.Rand())

	rr := l.model.Predict(p)
	carbon := surrogate.Carbon(rr, p.Fr)
	tier := domain.Classify(rr, carbon, p.Fr)

	return p, domain.HistoryPoint{
		Timestamp:      l.now(),
		Resistance:     rr,
		Carbon:         carbon,
		Tier:           tier,
		Recommendation: tier.Message(),
		Speed:          surrogate.Round(p.Fr, 4),
	}
}
