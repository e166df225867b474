package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"yacht-twin/monitor/internal/domain"
	"yacht-twin/monitor/internal/metrics"
	"yacht-twin/monitor/internal/surrogate"
	"yacht-twin/monitor/internal/twin"
)

type constNormal float64

func (c constNormal) Rand() float64 { return float64(c) }

type recordingSink struct {
	mu      sync.Mutex
	samples []*domain.TelemetrySample
}

func (r *recordingSink) Dispatch(msg *domain.TelemetrySample) {
	r.mu.Lock()
	r.samples = append(r.samples, msg)
	r.mu.Unlock()
}

func (r *recordingSink) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

func fixedClock() time.Time {
	return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
}

func newTestLoop(state *twin.State, opts LoopOptions) *TelemetryLoop {
	if opts.Clock == nil {
		opts.Clock = fixedClock
	}
	return NewTelemetryLoop(state, surrogate.NewModel(surrogate.ZeroNoise{}), opts, zerolog.Nop())
}

func sample(tier domain.Tier) *domain.TelemetrySample {
	return &domain.TelemetrySample{
		SessionID: "test",
		Point: domain.HistoryPoint{
			Timestamp:      fixedClock(),
			Resistance:     30,
			Carbon:         25,
			Tier:           tier,
			Recommendation: tier.Message(),
			Speed:          0.33,
		},
		Params:   domain.DefaultParameters(),
		TargetFr: 0.3,
	}
}

// --- telemetry loop ---

func TestTelemetryLoop_IdleTickWhenStopped(t *testing.T) {
	state := twin.NewState(domain.DefaultParameters(), 0)
	sink := &recordingSink{}
	loop := newTestLoop(state, LoopOptions{Sink: sink})

	_, ok := loop.Tick()

	assert.False(t, ok)
	assert.Empty(t, state.History())
	assert.Equal(t, domain.DefaultParameters(), state.Params())
	assert.Zero(t, sink.len())
}

func TestTelemetryLoop_TickRecordsPoint(t *testing.T) {
	state := twin.NewState(domain.DefaultParameters(), 0)
	state.SetRunning(true)
	sink := &recordingSink{}
	loop := newTestLoop(state, LoopOptions{Sink: sink, Normal: constNormal(0), SessionID: "s"})

	tick, ok := loop.Tick()

	require.True(t, ok)
	// fr stays at target with no noise
	assert.InDelta(t, 0.30, tick.Params.Fr, 1e-12)

	p := domain.DefaultParameters()
	wantRR := surrogate.Round(surrogate.Deterministic(p), 4)
	wantCarbon := surrogate.Carbon(wantRR, 0.30)

	h := state.History()
	require.Len(t, h, 1)
	assert.Equal(t, fixedClock(), h[0].Timestamp)
	assert.Equal(t, wantRR, h[0].Resistance)
	assert.Equal(t, wantCarbon, h[0].Carbon)
	assert.Equal(t, domain.Classify(wantRR, wantCarbon, 0.30), h[0].Tier)
	assert.Equal(t, h[0].Tier.Message(), h[0].Recommendation)
	assert.Equal(t, 0.3, h[0].Speed)

	require.Equal(t, 1, sink.len())
	assert.Equal(t, "s", sink.samples[0].SessionID)
	assert.Equal(t, h[0], sink.samples[0].Point)
}

func TestTelemetryLoop_MovesTowardTarget(t *testing.T) {
	state := twin.NewState(domain.DefaultParameters(), 0)
	target := 0.5
	state.Apply(domain.ParameterUpdate{Fr: &target})
	state.SetRunning(true)
	// pull the current speed back down without moving the target
	state.Advance(func(p domain.Parameters, _ float64) (domain.Parameters, domain.HistoryPoint) {
		p.Fr = 0.2
		return p, domain.HistoryPoint{}
	})
	loop := newTestLoop(state, LoopOptions{Normal: constNormal(0)})

	tick, ok := loop.Tick()

	require.True(t, ok)
	assert.InDelta(t, 0.2+0.8*(0.5-0.2)*0.5, tick.Params.Fr, 1e-12)
}

func TestTelemetryLoop_SpeedStaysClampedOverManyTicks(t *testing.T) {
	for i, target := range []float64{-3, 0.01, 0.3, 0.59, 4} {
		state := twin.NewState(domain.DefaultParameters(), 0)
		tgt := target
		state.Apply(domain.ParameterUpdate{Fr: &tgt})
		state.SetRunning(true)

		normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(uint64(i), 9)}
		loop := newTestLoop(state, LoopOptions{Normal: normal})

		for n := 0; n < 500; n++ {
			tick, ok := loop.Tick()
			require.True(t, ok)
			require.GreaterOrEqual(t, tick.Params.Fr, twin.DefaultSpeedMin)
			require.LessOrEqual(t, tick.Params.Fr, twin.DefaultSpeedMax)
		}
		assert.Len(t, state.History(), twin.DefaultHistorySize)
	}
}

func TestTelemetryLoop_RunStopsOnCancel(t *testing.T) {
	state := twin.NewState(domain.DefaultParameters(), 0)
	state.SetRunning(true)
	loop := newTestLoop(state, LoopOptions{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.Eventually(t, func() bool { return len(state.History()) >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

// --- dispatcher ---

func TestDispatcher_FansOutAndSkipsDisabled(t *testing.T) {
	d := NewDispatcher(2, 0, 2, 2)
	require.Nil(t, d.StateChan)

	d.Dispatch(sample(domain.TierCritical))
	d.Dispatch(sample(domain.TierStable))

	assert.Len(t, d.DBChan, 2)
	assert.Len(t, d.StreamChan, 2)
	// only alerting tiers reach the alert sink
	assert.Len(t, d.AlertChan, 1)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d := NewDispatcher(1, 0, 0, 0)
	before := testutil.ToFloat64(metrics.ChannelDrops.WithLabelValues("db"))

	d.Dispatch(sample(domain.TierStable))
	d.Dispatch(sample(domain.TierStable))

	assert.Len(t, d.DBChan, 1)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ChannelDrops.WithLabelValues("db")))
}

func TestDispatcher_Close(t *testing.T) {
	d := NewDispatcher(1, 1, 0, 1)
	d.Close()

	_, ok := <-d.DBChan
	assert.False(t, ok)
	_, ok = <-d.StreamChan
	assert.False(t, ok)
}

// --- db writer ---

type fakeSampleWriter struct {
	mu      sync.Mutex
	batches [][]*domain.TelemetrySample
	fail    int
	calls   int
}

func (f *fakeSampleWriter) BatchInsert(_ context.Context, msgs []*domain.TelemetrySample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail > 0 {
		f.fail--
		return errors.New("db down")
	}
	cp := make([]*domain.TelemetrySample, len(msgs))
	copy(cp, msgs)
	f.batches = append(f.batches, cp)
	return nil
}

func (f *fakeSampleWriter) written() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestDBWriter_FlushesFullBatches(t *testing.T) {
	ch := make(chan *domain.TelemetrySample, 10)
	db := &fakeSampleWriter{}
	w := NewDBWriter(ch, db, 2, 10000, zerolog.Nop())

	for i := 0; i < 5; i++ {
		ch <- sample(domain.TierStable)
	}
	close(ch)

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, 5, db.written())
	assert.Len(t, db.batches, 3)
}

func TestDBWriter_FlushesOnTicker(t *testing.T) {
	ch := make(chan *domain.TelemetrySample, 10)
	db := &fakeSampleWriter{}
	w := NewDBWriter(ch, db, 100, 10, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	ch <- sample(domain.TierStable)
	assert.Eventually(t, func() bool { return db.written() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestDBWriter_RetriesOnce(t *testing.T) {
	db := &fakeSampleWriter{fail: 1}
	w := NewDBWriter(nil, db, 1, 1000, zerolog.Nop())
	w.retryDelay = time.Millisecond
	before := testutil.ToFloat64(metrics.DBWriteSuccess)

	w.flush(context.Background(), []*domain.TelemetrySample{sample(domain.TierStable)})

	assert.Equal(t, 2, db.calls)
	assert.Equal(t, 1, db.written())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.DBWriteSuccess))
}

func TestDBWriter_GivesUpAfterRetry(t *testing.T) {
	db := &fakeSampleWriter{fail: 2}
	w := NewDBWriter(nil, db, 1, 1000, zerolog.Nop())
	w.retryDelay = time.Millisecond
	before := testutil.ToFloat64(metrics.DBWriteFailures)

	w.flush(context.Background(), []*domain.TelemetrySample{sample(domain.TierStable), sample(domain.TierStable)})

	assert.Equal(t, 2, db.calls)
	assert.Zero(t, db.written())
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.DBWriteFailures))
}

// --- state writer ---

type fakeStatePublisher struct {
	mu   sync.Mutex
	seen int
	err  error
}

func (f *fakeStatePublisher) PipelineStateUpdate(context.Context, *domain.TelemetrySample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen++
	return f.err
}

func (f *fakeStatePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen
}

func TestStateWriter_PublishesEverySample(t *testing.T) {
	ch := make(chan *domain.TelemetrySample, 40)
	pub := &fakeStatePublisher{}
	w := NewStateWriter(ch, pub, zerolog.Nop())

	for i := 0; i < 35; i++ {
		ch <- sample(domain.TierStable)
	}
	close(ch)

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, 35, pub.count())
}

func TestStateWriter_CountsFailures(t *testing.T) {
	pub := &fakeStatePublisher{err: errors.New("redis down")}
	w := NewStateWriter(nil, pub, zerolog.Nop())
	before := testutil.ToFloat64(metrics.StateWriteFailures)

	w.flushBatch(context.Background(), []*domain.TelemetrySample{sample(domain.TierStable)})

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.StateWriteFailures))
}

// --- alert evaluator ---

type fakeAlertBackend struct {
	mu        sync.Mutex
	inserted  []domain.Tier
	published [][]byte
	claimErr  error
}

func (f *fakeAlertBackend) InsertAlert(_ context.Context, _ string, tier domain.Tier, _ domain.AlertSeverity, _, _, _ float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, tier)
	return nil
}

func (f *fakeAlertBackend) PublishAlert(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeAlertBackend) ClaimAlert(context.Context, string, domain.Tier, time.Duration) (bool, error) {
	return false, f.claimErr
}

func TestAlertEvaluator_DeduplicatesPerTier(t *testing.T) {
	backend := &fakeAlertBackend{}
	e := NewAlertEvaluator(nil, AlertSinks{Recorder: backend, Publisher: backend}, time.Minute, zerolog.Nop())
	ctx := context.Background()

	e.evaluate(ctx, sample(domain.TierCritical))
	e.evaluate(ctx, sample(domain.TierCritical))
	e.evaluate(ctx, sample(domain.TierCaution))
	e.evaluate(ctx, sample(domain.TierStable))

	assert.Equal(t, []domain.Tier{domain.TierCritical, domain.TierCaution}, backend.inserted)
	require.Len(t, backend.published, 2)
	assert.Contains(t, string(backend.published[0]), `"tier":"CRITICAL"`)
	assert.Contains(t, string(backend.published[0]), `"severity":"CRITICAL"`)
}

func TestAlertEvaluator_SkipsOnDedupError(t *testing.T) {
	backend := &fakeAlertBackend{claimErr: errors.New("redis down")}
	e := NewAlertEvaluator(nil, AlertSinks{Deduper: backend, Recorder: backend}, time.Minute, zerolog.Nop())

	e.evaluate(context.Background(), sample(domain.TierCritical))

	assert.Empty(t, backend.inserted)
}

func TestAlertEvaluator_RunDrainsChannel(t *testing.T) {
	ch := make(chan *domain.TelemetrySample, 4)
	backend := &fakeAlertBackend{}
	e := NewAlertEvaluator(ch, AlertSinks{Recorder: backend}, time.Minute, zerolog.Nop())

	ch <- sample(domain.TierCaution)
	ch <- sample(domain.TierCritical)
	close(ch)

	require.NoError(t, e.Run(context.Background()))
	assert.Len(t, backend.inserted, 2)
}

func TestLocalDeduper_ExpiresAfterTTL(t *testing.T) {
	now := fixedClock()
	d := newLocalDeduper(func() time.Time { return now })
	ctx := context.Background()

	ok, _ := d.ClaimAlert(ctx, "s", domain.TierCritical, time.Minute)
	assert.True(t, ok)
	ok, _ = d.ClaimAlert(ctx, "s", domain.TierCritical, time.Minute)
	assert.False(t, ok)
	ok, _ = d.ClaimAlert(ctx, "other", domain.TierCritical, time.Minute)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = d.ClaimAlert(ctx, "s", domain.TierCritical, time.Minute)
	assert.True(t, ok)
}
