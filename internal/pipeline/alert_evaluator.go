package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"yacht-twin/monitor/internal/domain"
	"yacht-twin/monitor/internal/metrics"
)

// AlertDeduper claims the right to raise an alert for a tier within ttl.
type AlertDeduper interface {
	ClaimAlert(ctx context.Context, sessionID string, tier domain.Tier, ttl time.Duration) (bool, error)
}

type AlertRecorder interface {
	InsertAlert(
		ctx context.Context,
		sessionID string,
		tier domain.Tier,
		severity domain.AlertSeverity,
		rr float64,
		carbon float64,
		fr float64,
	) error
}

type AlertPublisher interface {
	PublishAlert(ctx context.Context, payload []byte) error
}

// AlertSinks groups the optional alert backends. A nil Deduper falls back to
// an in-process TTL map; nil Recorder or Publisher are skipped.
type AlertSinks struct {
	Deduper   AlertDeduper
	Recorder  AlertRecorder
	Publisher AlertPublisher
}

type AlertEvaluator struct {
	ch       <-chan *domain.TelemetrySample
	sinks    AlertSinks
	dedupTTL time.Duration
	logger   zerolog.Logger
}

func NewAlertEvaluator(
	ch <-chan *domain.TelemetrySample,
	sinks AlertSinks,
	dedupTTL time.Duration,
	logger zerolog.Logger,
) *AlertEvaluator {
	if sinks.Deduper == nil {
		sinks.Deduper = newLocalDeduper(time.Now)
	}
	return &AlertEvaluator{
		ch:       ch,
		sinks:    sinks,
		dedupTTL: dedupTTL,
		logger:   logger.With().Str("component", "alert_evaluator").Logger(),
	}
}

func (e *AlertEvaluator) Run(ctx context.Context) error {
	for {
		select {
		case msg, ok := <-e.ch:
			if !ok {
				return nil
			}
			e.evaluate(context.WithoutCancel(ctx), msg)

		case <-ctx.Done():
			return nil
		}
	}
}

func (e *AlertEvaluator) evaluate(ctx context.Context, msg *domain.TelemetrySample) {
	tier := msg.Point.Tier
	if !tier.Alerting() {
		return
	}

	claimed, err := e.sinks.Deduper.ClaimAlert(ctx, msg.SessionID, tier, e.dedupTTL)
	if err != nil {
		e.logger.Warn().Err(err).Str("tier", string(tier)).Msg("alert dedup check failed")
		return
	}
	if !claimed {
		return
	}

	severity := tier.Severity()
	e.logger.Warn().
		Str("tier", string(tier)).
		Str("severity", string(severity)).
		Float64("rr", msg.Point.Resistance).
		Float64("carbon", msg.Point.Carbon).
		Float64("fr", msg.Params.Fr).
		Msg(msg.Point.Recommendation)
	metrics.AlertsRaised.WithLabelValues(string(tier)).Inc()

	if e.sinks.Recorder != nil {
		err = e.sinks.Recorder.InsertAlert(ctx, msg.SessionID, tier, severity,
			msg.Point.Resistance, msg.Point.Carbon, msg.Params.Fr)
		if err != nil {
			e.logger.Error().Err(err).Str("tier", string(tier)).Msg("alert insert failed")
		}
	}

	if e.sinks.Publisher != nil {
		alertPayload, _ := json.Marshal(map[string]any{
			"session_id":     msg.SessionID,
			"tier":           string(tier),
			"severity":       string(severity),
			"rr":             msg.Point.Resistance,
			"carbon":         msg.Point.Carbon,
			"fr":             msg.Params.Fr,
			"recommendation": msg.Point.Recommendation,
			"triggered_at":   msg.Point.Timestamp.Unix(),
		})
		if err := e.sinks.Publisher.PublishAlert(ctx, alertPayload); err != nil {
			e.logger.Warn().Err(err).Msg("alert publish failed")
		}
	}
}

type localDeduper struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func newLocalDeduper(now func() time.Time) *localDeduper {
	return &localDeduper{until: make(map[string]time.Time), now: now}
}

func (d *localDeduper) ClaimAlert(_ context.Context, sessionID string, tier domain.Tier, ttl time.Duration) (bool, error) {
	key := sessionID + ":" + string(tier)
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.until[key]; ok && now.Before(exp) {
		return false, nil
	}
	d.until[key] = now.Add(ttl)
	return true, nil
}
