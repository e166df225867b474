package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"yacht-twin/monitor/internal/domain"
	"yacht-twin/monitor/internal/metrics"
)

// StatePublisher mirrors live state. *store.RedisStore satisfies it.
type StatePublisher interface {
	PipelineStateUpdate(ctx context.Context, msg *domain.TelemetrySample) error
}

type StateWriter struct {
	ch     <-chan *domain.TelemetrySample
	redis  StatePublisher
	logger zerolog.Logger
}

func NewStateWriter(
	ch <-chan *domain.TelemetrySample,
	redis StatePublisher,
	logger zerolog.Logger,
) *StateWriter {
	return &StateWriter{
		ch:     ch,
		redis:  redis,
		logger: logger.With().Str("component", "state_writer").Logger(),
	}
}

func (w *StateWriter) Run(ctx context.Context) error {
	batch := make([]*domain.TelemetrySample, 0, 16)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-w.ch:
			if !ok {
				w.flushBatch(context.WithoutCancel(ctx), batch)
				return nil
			}
			batch = append(batch, msg)
			if len(batch) >= cap(batch) {
				w.flushBatch(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flushBatch(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			w.flushBatch(context.WithoutCancel(ctx), batch)
			return nil
		}
	}
}

func (w *StateWriter) flushBatch(ctx context.Context, batch []*domain.TelemetrySample) {
	for _, msg := range batch {
		if err := w.redis.PipelineStateUpdate(ctx, msg); err != nil {
			metrics.StateWriteFailures.Inc()
			w.logger.Warn().Err(err).Time("at", msg.Point.Timestamp).Msg("redis state update failed")
		}
	}
}
